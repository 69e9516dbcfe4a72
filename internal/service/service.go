// Package service sequences a conversation turn and exposes the
// conversation, message and branch operations the transports call.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/xiaot623/gogo/convo/internal/adapter/analytics"
	"github.com/xiaot623/gogo/convo/internal/adapter/llm"
	"github.com/xiaot623/gogo/convo/internal/adapter/quota"
	"github.com/xiaot623/gogo/convo/internal/adapter/search"
	"github.com/xiaot623/gogo/convo/internal/branch"
	"github.com/xiaot623/gogo/convo/internal/classifier"
	"github.com/xiaot623/gogo/convo/internal/config"
	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/prompt"
	"github.com/xiaot623/gogo/convo/internal/semcache"
)

// Store is the persistence the service needs.
type Store interface {
	branch.Store
	analytics.EventStore

	CreateConversation(ctx context.Context, c *domain.Conversation) error
	FindConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, includeArchived bool, limit int) ([]domain.Conversation, error)
	UpdateConversationCounters(ctx context.Context, conversationID string, messages, tokens int, at time.Time) error
	UpdateConversationFlags(ctx context.Context, conversationID string, pinned, archived *bool) error
	DeleteConversation(ctx context.Context, conversationID string) error

	CreateMessage(ctx context.Context, m *domain.Message) error
	DeleteMessage(ctx context.Context, messageID string) error
	ListBranchMessages(ctx context.Context, conversationID, branchID string, limit int) ([]domain.Message, error)
	AddReaction(ctx context.Context, messageID string, delta int) (int, error)

	ListEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error)
}

// Entitler resolves a plan name to its entitlements.
type Entitler interface {
	Entitlements(ctx context.Context, plan string) (domain.Entitlements, error)
}

// ModelInvoker calls the model with retries.
type ModelInvoker interface {
	Invoke(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, int, error)
}

// Deps are the collaborators wired in main.
type Deps struct {
	Store     Store
	Policy    Entitler
	Ledger    quota.Ledger
	Model     ModelInvoker
	Search    search.Searcher
	Cache     *semcache.Cache
	Analytics analytics.Sink
	Config    *config.Config
	Logger    *logger.Logger
}

type Service struct {
	store      Store
	policy     Entitler
	ledger     quota.Ledger
	model      ModelInvoker
	search     search.Searcher
	cache      *semcache.Cache
	analytics  analytics.Sink
	config     *config.Config
	log        *logger.Logger
	classifier *classifier.Classifier
	compiler   *prompt.Compiler
	branches   *branch.Manager
	now        func() time.Time

	// bg tracks fire-and-forget analytics so shutdown can drain them.
	bg sync.WaitGroup
}

func New(d Deps) *Service {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	searcher := d.Search
	if searcher == nil {
		searcher = search.Noop{}
	}
	sink := d.Analytics
	if sink == nil {
		sink = analytics.Discard{}
	}
	cache := d.Cache
	if cache == nil {
		cache = semcache.New(semcache.Options{MaxEntries: cfg.CacheMaxEntries, Logger: log})
	}
	return &Service{
		store:      d.Store,
		policy:     d.Policy,
		ledger:     d.Ledger,
		model:      d.Model,
		search:     searcher,
		cache:      cache,
		analytics:  sink,
		config:     cfg,
		log:        log.With("component", "service"),
		classifier: classifier.New(),
		compiler:   prompt.New(cfg.PromptBudget),
		branches:   branch.NewManager(d.Store, log, cfg.MaxBranchDepth),
		now:        time.Now,
	}
}

// Wait blocks until background analytics work has finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// emit sends ev without blocking the caller. Failures and panics are logged.
func (s *Service) emit(ev analytics.Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("analytics sink panicked", "panic", r, "type", string(ev.Type))
			}
		}()
		timeout := s.config.AnalyticsTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.analytics.Emit(ctx, ev); err != nil {
			s.log.Warn("failed to emit analytics event", "type", string(ev.Type), "error", err)
		}
	}()
}

// RunCacheSweeper purges expired cache entries until ctx is done.
func (s *Service) RunCacheSweeper(ctx context.Context) {
	s.cache.Run(ctx, s.config.CacheSweepInterval)
}
