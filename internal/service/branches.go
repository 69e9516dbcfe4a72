package service

import (
	"context"

	"github.com/xiaot623/gogo/convo/internal/adapter/analytics"
	"github.com/xiaot623/gogo/convo/internal/branch"
	"github.com/xiaot623/gogo/convo/internal/domain"
)

// CreateBranch forks a conversation at req.ParentMessageID without sending a
// message. Plan limits come from req.Plan.
func (s *Service) CreateBranch(ctx context.Context, conversationID string, req domain.CreateBranchRequest) (*domain.Branch, error) {
	if _, err := s.GetConversation(ctx, conversationID, req.UserID); err != nil {
		return nil, err
	}
	ent, err := s.policy.Entitlements(ctx, req.Plan)
	if err != nil {
		return nil, err
	}
	b, err := s.branches.Create(ctx, branch.CreateRequest{
		ConversationID:  conversationID,
		UserID:          req.UserID,
		ParentMessageID: req.ParentMessageID,
		Label:           req.Label,
	}, ent)
	if err != nil {
		return nil, err
	}
	s.emit(branchEvent(domain.EventTypeBranchCreated, b, req.UserID))
	return b, nil
}

// BranchTree returns the conversation's branch tree, trunk first.
func (s *Service) BranchTree(ctx context.Context, conversationID, userID string) ([]*branch.Node, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.branches.Tree(ctx, conversationID)
}

// DeleteBranch removes a branch and its messages. Nested branches remain.
func (s *Service) DeleteBranch(ctx context.Context, conversationID, userID, branchID string) (int64, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	b, err := s.branches.Get(ctx, conversationID, branchID)
	if err != nil {
		return 0, err
	}
	n, err := s.branches.Delete(ctx, conversationID, branchID)
	if err != nil {
		return 0, err
	}
	ev := branchEvent(domain.EventTypeBranchDeleted, b, userID)
	ev.Attrs["messages_deleted"] = n
	s.emit(ev)
	return n, nil
}

func branchEvent(typ domain.EventType, b *domain.Branch, userID string) analytics.Event {
	return analytics.Event{
		Type:           typ,
		ConversationID: b.ConversationID,
		UserID:         userID,
		Attrs: map[string]interface{}{
			"branch_id":         b.BranchID,
			"parent_message_id": b.ParentMessageID,
			"depth":             b.Depth,
		},
	}
}
