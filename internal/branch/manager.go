// Package branch manages alternate continuations of a conversation created
// by editing or regenerating a past message.
//
// A branch forks at ParentMessageID: it replaces that message and everything
// after it on the parent line. The trunk has depth 0 and a branch is one
// deeper than the line its parent message lives on.
package branch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/convo/internal/apperr"
	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
)

// MaxWalk bounds every parent-link walk. Corrupted data with a cycle stops
// here instead of looping.
const MaxWalk = 64

// Store is the persistence the manager needs. Getters return nil, nil when
// the row does not exist.
type Store interface {
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	GetBranch(ctx context.Context, branchID string) (*domain.Branch, error)
	ListBranches(ctx context.Context, conversationID string) ([]domain.Branch, error)
	CountBranches(ctx context.Context, conversationID string) (int, error)
	CreateBranch(ctx context.Context, branch *domain.Branch) error
	DeleteBranch(ctx context.Context, branchID string) (int64, error)
}

type Manager struct {
	store    Store
	log      *logger.Logger
	locks    *keyedMutex
	maxDepth int
	now      func() time.Time
}

// NewManager returns a manager. maxDepth is a global ceiling applied on top
// of per-plan limits; zero means plan limits only.
func NewManager(store Store, log *logger.Logger, maxDepth int) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		store:    store,
		log:      log.With("component", "branch"),
		locks:    newKeyedMutex(),
		maxDepth: maxDepth,
		now:      time.Now,
	}
}

type CreateRequest struct {
	ConversationID  string
	UserID          string
	ParentMessageID string
	Label           string
}

// Create checks, in order: branching enabled, non-zero plan quota, quota not
// yet reached, parent message present in this conversation, depth below the
// limit. Checks and the insert run under a per-conversation lock so two
// concurrent edits cannot both pass the quota check.
func (m *Manager) Create(ctx context.Context, req CreateRequest, ent domain.Entitlements) (*domain.Branch, error) {
	if !ent.BranchingEnabled {
		return nil, apperr.Rejected(apperr.CodeBranchingDisabled, "branching is not available on your plan")
	}
	if ent.MaxBranches <= 0 {
		return nil, apperr.Rejected(apperr.CodeBranchQuotaZero, "your plan allows no branches")
	}

	unlock := m.locks.Lock(req.ConversationID)
	defer unlock()

	count, err := m.store.CountBranches(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("count branches: %w", err)
	}
	if count >= ent.MaxBranches {
		return nil, apperr.Rejected(apperr.CodeMaxBranchesReached,
			fmt.Sprintf("this conversation already has %d of %d branches", count, ent.MaxBranches))
	}

	parent, err := m.store.GetMessage(ctx, req.ParentMessageID)
	if err != nil {
		return nil, fmt.Errorf("get parent message: %w", err)
	}
	if parent == nil || parent.ConversationID != req.ConversationID {
		return nil, apperr.Rejected(apperr.CodeParentNotFound, "the message to branch from was not found")
	}

	limit := m.depthLimit(ent)
	parentDepth, err := m.Depth(ctx, parent)
	if err != nil {
		return nil, err
	}
	if parentDepth >= limit {
		return nil, apperr.Rejected(apperr.CodeMaxDepthReached,
			fmt.Sprintf("branches can be nested at most %d deep", limit))
	}

	label := req.Label
	if label == "" {
		label = fmt.Sprintf("Edit %d", count+1)
	}
	b := &domain.Branch{
		BranchID:        uuid.New().String(),
		ConversationID:  req.ConversationID,
		ParentMessageID: parent.MessageID,
		Label:           label,
		Depth:           parentDepth + 1,
		CreatedBy:       req.UserID,
		CreatedAt:       m.now(),
	}
	if err := m.store.CreateBranch(ctx, b); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	m.log.Info("branch created", "conversation_id", b.ConversationID, "branch_id", b.BranchID, "depth", b.Depth)
	return b, nil
}

func (m *Manager) depthLimit(ent domain.Entitlements) int {
	limit := ent.MaxBranchDepth
	if m.maxDepth > 0 && (limit <= 0 || m.maxDepth < limit) {
		limit = m.maxDepth
	}
	return limit
}

// Depth returns how many branch hops separate msg from the trunk. A missing
// branch or parent ends the walk where it is. Hitting MaxWalk returns MaxWalk,
// which is above any sane limit.
func (m *Manager) Depth(ctx context.Context, msg *domain.Message) (int, error) {
	depth := 0
	branchID := msg.BranchID
	for branchID != "" {
		if depth >= MaxWalk {
			m.log.Warn("branch walk hit ceiling", "branch_id", branchID)
			return MaxWalk, nil
		}
		b, err := m.store.GetBranch(ctx, branchID)
		if err != nil {
			return 0, fmt.Errorf("get branch: %w", err)
		}
		if b == nil {
			break
		}
		depth++
		parent, err := m.store.GetMessage(ctx, b.ParentMessageID)
		if err != nil {
			return 0, fmt.Errorf("get message: %w", err)
		}
		if parent == nil {
			break
		}
		branchID = parent.BranchID
	}
	return depth, nil
}

// Delete removes a branch and its messages. Child branches are left in place
// and show up as orphan roots in the tree.
func (m *Manager) Delete(ctx context.Context, conversationID, branchID string) (int64, error) {
	unlock := m.locks.Lock(conversationID)
	defer unlock()

	b, err := m.store.GetBranch(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("get branch: %w", err)
	}
	if b == nil || b.ConversationID != conversationID {
		return 0, apperr.New(apperr.KindNotFound, apperr.CodeBranchNotFound, "branch not found", nil)
	}
	n, err := m.store.DeleteBranch(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("delete branch: %w", err)
	}
	m.log.Info("branch deleted", "conversation_id", conversationID, "branch_id", branchID, "messages", n)
	return n, nil
}

// Get returns the branch if it belongs to conversationID.
func (m *Manager) Get(ctx context.Context, conversationID, branchID string) (*domain.Branch, error) {
	b, err := m.store.GetBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	if b == nil || b.ConversationID != conversationID {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeBranchNotFound, "branch not found", nil)
	}
	return b, nil
}
