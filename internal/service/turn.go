package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/convo/internal/adapter/analytics"
	"github.com/xiaot623/gogo/convo/internal/adapter/llm"
	"github.com/xiaot623/gogo/convo/internal/adapter/quota"
	"github.com/xiaot623/gogo/convo/internal/adapter/search"
	"github.com/xiaot623/gogo/convo/internal/apperr"
	"github.com/xiaot623/gogo/convo/internal/branch"
	"github.com/xiaot623/gogo/convo/internal/classifier"
	"github.com/xiaot623/gogo/convo/internal/contextwin"
	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/health"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/prompt"
	"github.com/xiaot623/gogo/convo/internal/semcache"
)

// escalateTemperature caps sampling temperature for crisis replies.
const escalateTemperature = 0.3

// turn carries one request through the states.
type turn struct {
	req     domain.TurnRequest
	res     *domain.TurnResult
	start   time.Time
	log     *logger.Logger
	onState func(domain.TurnState)

	ent          domain.Entitlements
	cachePolicy  semcache.Policy
	cacheSession string

	conv     *domain.Conversation
	branchID string
	forkID   string // set when this turn opened the branch
	history  []domain.Message
	window   contextwin.Window
	identity prompt.Identity
	cls      classifier.Result
	verdict  *health.Verdict
	fact     *search.Result
	compiled prompt.Result
	reply    string
	usage    domain.Usage
}

func (t *turn) enter(st domain.TurnState) {
	t.res.States = append(t.res.States, st)
	if t.onState != nil {
		t.onState(st)
	}
}

// ProcessTurn answers one user message.
func (s *Service) ProcessTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	return s.ProcessTurnStream(ctx, req, nil)
}

// ProcessTurnStream is ProcessTurn with a callback for each state entered.
//
// Terminal outcomes other than done return the partially filled result
// together with a typed *apperr.Error.
func (s *Service) ProcessTurnStream(ctx context.Context, req domain.TurnRequest, onState func(domain.TurnState)) (*domain.TurnResult, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.SessionID == "" || req.Message == "" {
		return nil, apperr.Validation("user_id, session_id and message are required")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	t := &turn{
		req:     req,
		start:   s.now(),
		onState: onState,
		log:     s.log.With("request_id", req.RequestID, "session_id", req.SessionID, "user_id", req.UserID),
		res: &domain.TurnResult{
			ConversationID: req.SessionID,
			States:         []domain.TurnState{},
		},
	}

	ent, err := s.policy.Entitlements(ctx, req.Plan)
	if err != nil {
		return s.fail(t, fmt.Errorf("resolve plan: %w", err))
	}
	t.ent = ent
	t.cachePolicy = semcache.Policy{
		Enabled:   ent.CacheEnabled && !req.SkipCache && !req.IsEdit() && req.BranchID == "",
		Threshold: ent.CacheThreshold,
		TTL:       ent.CacheTTL(),
	}
	if s.config.CacheSessionScoped {
		t.cacheSession = req.SessionID
	}

	t.enter(domain.StateCacheCheck)
	if t.cachePolicy.Enabled {
		hit := s.cache.Lookup(req.UserID, t.cacheSession, req.Message, t.cachePolicy)
		if hit.Hit && s.servable(req.Message) {
			return s.serveCached(ctx, t, hit)
		}
	}

	if err := s.checkQuotaAndSession(ctx, t); err != nil {
		return s.fail(t, err)
	}
	if err := s.resolveBranch(ctx, t); err != nil {
		return s.fail(t, err)
	}
	s.fetchHistory(ctx, t)
	s.detectPersonalization(t)

	t.enter(domain.StateClassify)
	t.cls = s.classifier.Classify(req.Message, recentUserTurns(t.history, s.classifier.RepeatWindow))
	t.res.Insight = insightOf(t)
	if t.cls.Blocked() {
		t.log.Info("turn blocked by safety classifier", "intent", string(t.cls.Intent))
		return s.fail(t, apperr.SafetyBlocked())
	}

	s.assessHealth(t)
	s.augment(ctx, t)

	t.enter(domain.StatePromptCompile)
	in := prompt.Input{Identity: t.identity, Classification: t.cls, Health: t.verdict}
	if t.fact != nil {
		in.Search = &prompt.SearchFact{Fact: t.fact.Fact, Sources: t.fact.Sources}
	}
	t.compiled = s.compiler.Compile(in)
	t.res.Insight = insightOf(t)

	if err := s.invokeModel(ctx, t); err != nil {
		return s.fail(t, err)
	}

	t.enter(domain.StatePersist)
	s.persist(ctx, t)

	if s.cacheable(t) {
		t.enter(domain.StateCacheStore)
		s.cache.Store(req.UserID, t.cacheSession, req.Message, t.reply, t.cachePolicy)
	}

	s.deduct(ctx, t)

	return s.finish(t, domain.EventTypeTurnCompleted), nil
}

func (s *Service) serveCached(ctx context.Context, t *turn, hit semcache.Hit) (*domain.TurnResult, error) {
	t.res.Cached = true
	t.res.Similarity = hit.Similarity
	t.reply = hit.Response

	t.enter(domain.StatePersist)
	conv, err := s.store.FindConversation(ctx, t.req.SessionID, t.req.UserID)
	if err != nil {
		return s.fail(t, fmt.Errorf("find conversation: %w", err))
	}
	if conv == nil {
		return s.fail(t, apperr.SessionNotFound())
	}
	t.conv = conv
	last, err := s.store.ListBranchMessages(ctx, conv.ConversationID, "", 1)
	if err != nil {
		t.log.Warn("failed to load last message for cached reply", "error", err)
	}
	t.history = last
	s.persist(ctx, t)

	t.log.Debug("served from semantic cache", "similarity", hit.Similarity)
	return s.finish(t, domain.EventTypeCacheHit), nil
}

// checkQuotaAndSession runs the quota check and the conversation lookup
// concurrently. Quota failures win when both fail.
func (s *Service) checkQuotaAndSession(ctx context.Context, t *turn) error {
	t.enter(domain.StateQuotaCheck)
	t.enter(domain.StateSessionResolve)

	estimate := int64(prompt.EstimateTokens(t.req.Message))
	var (
		decision quota.Decision
		conv     *domain.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.ledger.CanAfford(gctx, t.req.UserID, estimate, limitsOf(t.ent))
		if err != nil {
			return fmt.Errorf("quota check: %w", err)
		}
		decision = d
		return nil
	})
	g.Go(func() error {
		c, err := s.store.FindConversation(gctx, t.req.SessionID, t.req.UserID)
		if err != nil {
			return fmt.Errorf("find conversation: %w", err)
		}
		conv = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if !decision.Allowed {
		t.log.Info("quota exhausted", "reason", decision.Reason, "daily_used", decision.DailyUsed, "monthly_used", decision.MonthlyUsed)
		return apperr.QuotaExceeded(decision.Reason == quota.ReasonMonthly)
	}
	if conv == nil {
		return apperr.SessionNotFound()
	}
	t.conv = conv
	return nil
}

// resolveBranch opens a branch for edits and checks a requested branch.
// A missing parent or branch degrades to the current line.
func (s *Service) resolveBranch(ctx context.Context, t *turn) error {
	req := t.req
	if req.ParentMessageID == "" && req.BranchID == "" {
		return nil
	}
	t.enter(domain.StateBranchResolve)

	if req.ParentMessageID != "" {
		b, err := s.branches.Create(ctx, branch.CreateRequest{
			ConversationID:  t.conv.ConversationID,
			UserID:          req.UserID,
			ParentMessageID: req.ParentMessageID,
		}, t.ent)
		switch {
		case err == nil:
			t.branchID, t.forkID = b.BranchID, b.ParentMessageID
			t.res.BranchID = b.BranchID
			s.emit(branchEvent(domain.EventTypeBranchCreated, b, req.UserID))
			return nil
		case apperr.CodeOf(err) == apperr.CodeParentNotFound:
			t.log.Warn("edit target not found, continuing without a new branch", "parent_message_id", req.ParentMessageID)
		default:
			return err
		}
	}

	if req.BranchID == "" {
		return nil
	}
	if _, err := s.branches.Get(ctx, t.conv.ConversationID, req.BranchID); err != nil {
		if apperr.CodeOf(err) != apperr.CodeBranchNotFound {
			return err
		}
		t.log.Warn("branch not found, continuing on the trunk", "branch_id", req.BranchID)
		return nil
	}
	t.branchID = req.BranchID
	t.res.BranchID = req.BranchID
	return nil
}

func (s *Service) fetchHistory(ctx context.Context, t *turn) {
	t.enter(domain.StateHistoryFetch)
	history, err := s.branches.Lineage(ctx, t.conv.ConversationID, t.branchID)
	if err != nil {
		t.log.Warn("failed to fetch history, answering without it", "error", err)
		history = nil
	}
	t.history = history
	t.window = contextwin.Fit(history, s.config.HistoryBudget)
}

func (s *Service) detectPersonalization(t *turn) {
	t.identity = prompt.Identity{
		AssistantName: s.config.AssistantName,
		UserName:      t.req.UserName,
		Location:      t.req.Location,
		Timezone:      t.req.Timezone,
		Now:           s.now(),
	}
	if t.identity.Timezone == "" {
		t.identity.Timezone = s.config.DefaultTimezone
	}

	p := classifier.DetectPersonalization(t.req.Message)
	if p.Empty() {
		return
	}
	t.enter(domain.StatePersonalizationDetect)
	if t.identity.UserName == "" {
		t.identity.UserName = p.Name
	}
	if t.identity.Location == "" {
		t.identity.Location = p.Location
	}
}

// assessHealth derives a verdict for health queries only. Escalated turns
// keep the crisis posture without a verdict.
func (s *Service) assessHealth(t *turn) {
	if t.cls.SafetyLevel != classifier.SafetyHealthQuery {
		return
	}
	t.enter(domain.StateHealthAssess)
	v := health.Assess(t.req.Message)
	t.verdict = &v
}

func (s *Service) augment(ctx context.Context, t *turn) {
	if !t.cls.NeedsFreshData || t.cls.SafetyLevel >= classifier.SafetyEscalate {
		return
	}
	if classifier.IsFollowUp(t.req.Message, len(t.history)) {
		return
	}
	if _, noop := s.search.(search.Noop); noop {
		return
	}
	t.enter(domain.StateSearchAugment)

	sctx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()
	fact, err := s.search.Search(sctx, t.req.Message, t.identity.Location)
	if err != nil {
		t.log.Warn("search augmentation failed, continuing without it", "error", err)
		return
	}
	if fact == nil {
		return
	}
	t.fact = fact
	t.res.Sources = fact.Sources
}

func (s *Service) invokeModel(ctx context.Context, t *turn) error {
	t.enter(domain.StateModelInvoke)

	temp := s.config.Temperature
	if t.req.Temperature != nil {
		temp = *t.req.Temperature
	}
	escalated := t.cls.SafetyLevel == classifier.SafetyEscalate
	if escalated && temp > escalateTemperature {
		temp = escalateTemperature
	}

	resp, attempts, err := s.model.Invoke(ctx, &llm.ChatCompletionRequest{
		Model:       s.config.LLMModel,
		Messages:    buildMessages(t),
		Temperature: &temp,
	})
	t.res.ModelAttempts = attempts
	if err != nil {
		t.log.Error("model invocation failed", "attempts", attempts, "error", err)
		return apperr.Upstream(err)
	}

	content := resp.Content()
	if resp.Usage != nil {
		t.usage = domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	} else {
		t.usage.PromptTokens = t.compiled.Tokens + t.window.Tokens + prompt.EstimateTokens(t.req.Message)
		t.usage.CompletionTokens = prompt.EstimateTokens(content)
		t.usage.TotalTokens = t.usage.PromptTokens + t.usage.CompletionTokens
	}

	t.enter(domain.StateResponseSanitize)
	t.reply = prompt.SanitizeResponse(content, s.config.AssistantName)
	if escalated && !strings.Contains(t.reply, "14416") {
		t.reply += "\n\nAgar abhi kisi se baat karni ho: " + prompt.CrisisResources + "."
	}
	return nil
}

// buildMessages lays out system instructions, the fitted history and the
// new user message.
func buildMessages(t *turn) []llm.ChatMessage {
	system := t.compiled.Text
	if t.window.Digest != "" {
		system += "\n\n## Earlier in this conversation\n" + t.window.Digest
	}
	msgs := make([]llm.ChatMessage, 0, len(t.window.Messages)+2)
	msgs = append(msgs, llm.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	for _, m := range t.window.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		msgs = append(msgs, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, llm.ChatMessage{Role: string(domain.RoleUser), Content: t.req.Message})
}

// persist writes both messages even if the caller has gone away. If the
// reply cannot be stored the user message is removed again, best effort.
func (s *Service) persist(ctx context.Context, t *turn) {
	pctx := context.WithoutCancel(ctx)
	now := s.now()

	parent := ""
	if n := len(t.history); n > 0 {
		parent = t.history[n-1].MessageID
	}
	if t.forkID != "" {
		parent = t.forkID
	}

	userMsg := &domain.Message{
		MessageID:       uuid.New().String(),
		ConversationID:  t.conv.ConversationID,
		Role:            domain.RoleUser,
		Content:         t.req.Message,
		BranchID:        t.branchID,
		ParentMessageID: parent,
		Tokens:          prompt.EstimateTokens(t.req.Message),
		CreatedAt:       now,
		Metadata:        mustJSON(map[string]interface{}{"request_id": t.req.RequestID}),
	}
	if err := s.store.CreateMessage(pctx, userMsg); err != nil {
		t.log.Error("failed to save user message", "error", err)
		return
	}

	replyTokens := t.usage.CompletionTokens
	if replyTokens == 0 {
		replyTokens = prompt.EstimateTokens(t.reply)
	}
	meta := map[string]interface{}{"cached": t.res.Cached}
	if t.res.Cached {
		meta["similarity"] = t.res.Similarity
	}
	if len(t.res.Sources) > 0 {
		meta["sources"] = t.res.Sources
	}
	replyMsg := &domain.Message{
		MessageID:       uuid.New().String(),
		ConversationID:  t.conv.ConversationID,
		Role:            domain.RoleAssistant,
		Content:         t.reply,
		BranchID:        t.branchID,
		ParentMessageID: userMsg.MessageID,
		Tokens:          replyTokens,
		CreatedAt:       now.Add(time.Millisecond),
		Metadata:        mustJSON(meta),
	}
	if err := s.store.CreateMessage(pctx, replyMsg); err != nil {
		t.log.Error("failed to save reply, removing user message", "error", err)
		if derr := s.store.DeleteMessage(pctx, userMsg.MessageID); derr != nil {
			t.log.Error("failed to remove orphaned user message", "message_id", userMsg.MessageID, "error", derr)
		}
		return
	}
	t.res.UserMessageID = userMsg.MessageID
	t.res.ReplyMessageID = replyMsg.MessageID

	if err := s.store.UpdateConversationCounters(pctx, t.conv.ConversationID, 2, userMsg.Tokens+replyMsg.Tokens, now); err != nil {
		t.log.Warn("failed to update conversation counters", "error", err)
	}
}

// servable reports whether a cached reply may answer message. Anything at
// health-query level or above must go through the full pipeline.
func (s *Service) servable(message string) bool {
	level := s.classifier.Classify(message, nil).SafetyLevel
	return level == classifier.SafetyClean || level == classifier.SafetySensitive
}

// cacheable reports whether the reply may be served to later similar questions.
func (s *Service) cacheable(t *turn) bool {
	if !t.cachePolicy.Enabled || t.branchID != "" || t.fact != nil || t.cls.Repetition.Repeat {
		return false
	}
	return t.cls.SafetyLevel == classifier.SafetyClean || t.cls.SafetyLevel == classifier.SafetySensitive
}

// deduct charges the actual prompt tokens plus any search cost.
func (s *Service) deduct(ctx context.Context, t *turn) {
	t.enter(domain.StateUsageDeduct)
	units := int64(t.usage.PromptTokens)
	if t.fact != nil {
		units += t.fact.Cost
	}
	t.res.UnitsDeducted = units
	if units <= 0 {
		return
	}
	rem, err := s.ledger.Deduct(context.WithoutCancel(ctx), t.req.UserID, units, limitsOf(t.ent))
	if err != nil {
		t.log.Error("failed to deduct usage", "units", units, "error", err)
		return
	}
	t.log.Debug("usage deducted", "units", units, "daily_remaining", rem.Daily, "monthly_remaining", rem.Monthly)
}

func (s *Service) finish(t *turn, typ domain.EventType) *domain.TurnResult {
	t.enter(domain.StateAnalyticsEmit)
	t.res.Status = domain.TurnStatusDone
	t.res.Reply = t.reply
	t.res.Usage = t.usage
	t.res.LatencyMs = s.now().Sub(t.start).Milliseconds()
	s.emit(s.turnEvent(t, typ))
	return t.res
}

// fail ends the turn. Untyped errors become internal errors.
func (s *Service) fail(t *turn, err error) (*domain.TurnResult, error) {
	appErr, ok := apperr.As(err)
	if !ok {
		t.log.Error("turn failed", "error", err)
		appErr = apperr.Internal(err)
	}

	typ := domain.EventTypeTurnFailed
	switch appErr.Kind {
	case apperr.KindQuota:
		t.res.Status, typ = domain.TurnStatusQuotaExceeded, domain.EventTypeQuotaExhausted
	case apperr.KindSafety:
		t.res.Status, typ = domain.TurnStatusBlocked, domain.EventTypeTurnBlocked
	case apperr.KindNotFound:
		t.res.Status = domain.TurnStatusSessionNotFound
	default:
		t.res.Status = domain.TurnStatusFailed
	}
	t.res.Reason = appErr.Code
	t.res.LatencyMs = s.now().Sub(t.start).Milliseconds()
	s.emit(s.turnEvent(t, typ))
	return t.res, appErr
}

func (s *Service) turnEvent(t *turn, typ domain.EventType) analytics.Event {
	m := &analytics.TurnMetrics{
		RequestID:     t.req.RequestID,
		BranchID:      t.res.BranchID,
		Status:        t.res.Status,
		Reason:        t.res.Reason,
		States:        append([]domain.TurnState(nil), t.res.States...),
		CacheHit:      t.res.Cached,
		Similarity:    t.res.Similarity,
		Searched:      t.fact != nil,
		Usage:         t.usage,
		Units:         t.res.UnitsDeducted,
		ModelAttempts: t.res.ModelAttempts,
		Latency:       time.Duration(t.res.LatencyMs) * time.Millisecond,
	}
	if in := t.res.Insight; in != nil {
		m.Intent, m.Language, m.SafetyLevel, m.HealthMode = in.Intent, in.Language, in.SafetyLevel, in.HealthMode
	}
	return analytics.Event{
		Type:           typ,
		ConversationID: t.req.SessionID,
		UserID:         t.req.UserID,
		Turn:           m,
	}
}

func insightOf(t *turn) *domain.TurnInsight {
	in := &domain.TurnInsight{
		Intent:       string(t.cls.Intent),
		Language:     string(t.cls.Language),
		Emotion:      string(t.cls.Emotion),
		SafetyLevel:  t.cls.SafetyLevel.String(),
		Complexity:   string(t.cls.Complexity),
		Repeat:       t.cls.Repetition.Repeat,
		Confidence:   t.cls.Confidence,
		PromptTokens: t.compiled.Tokens,
	}
	if t.verdict != nil {
		in.HealthMode = string(t.verdict.ResponseMode)
	}
	return in
}

// recentUserTurns returns up to n of the latest user messages, oldest first.
func recentUserTurns(history []domain.Message, n int) []string {
	var out []string
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == domain.RoleUser {
			out = append(out, history[i].Content)
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func limitsOf(ent domain.Entitlements) quota.Limits {
	return quota.Limits{Daily: ent.DailyUnits, Monthly: ent.MonthlyUnits}
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
