package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/convo/internal/apperr"
	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/semcache"
)

const defaultTitle = "New conversation"

// CreateConversation opens a conversation for req.UserID.
func (s *Service) CreateConversation(ctx context.Context, req domain.CreateConversationRequest) (*domain.Conversation, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperr.Validation("user_id is required")
	}
	id := req.ConversationID
	if id == "" {
		id = "conv_" + uuid.New().String()
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	now := s.now()
	conv := &domain.Conversation{
		ConversationID: id,
		UserID:         req.UserID,
		Title:          title,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.log.Info("conversation created", "conversation_id", id, "user_id", req.UserID)
	return conv, nil
}

// GetConversation returns the conversation if userID owns it.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, apperr.SessionNotFound()
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, userID string, includeArchived bool, limit int) ([]domain.Conversation, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	return s.store.ListConversations(ctx, userID, includeArchived, limit)
}

// UpdateConversation sets the pinned and archived flags that are non-nil.
func (s *Service) UpdateConversation(ctx context.Context, conversationID, userID string, pinned, archived *bool) (*domain.Conversation, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateConversationFlags(ctx, conversationID, pinned, archived); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return s.GetConversation(ctx, conversationID, userID)
}

// DeleteConversation removes the conversation with its messages and branches
// and drops the user's cached replies.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	dropped := s.cache.Invalidate(userID)
	s.log.Info("conversation deleted", "conversation_id", conversationID, "cache_entries_dropped", dropped)
	return nil
}

// ListMessages returns what a turn on branchID would see, oldest first.
// An empty branchID lists the trunk.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID, branchID string) ([]domain.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if branchID != "" {
		if _, err := s.branches.Get(ctx, conversationID, branchID); err != nil {
			return nil, err
		}
	}
	return s.branches.Lineage(ctx, conversationID, branchID)
}

// React adds delta (+1 or -1) to a message's reaction count.
func (s *Service) React(ctx context.Context, conversationID, userID, messageID string, delta int) (int, error) {
	if delta != 1 && delta != -1 {
		return 0, apperr.Validation("delta must be 1 or -1")
	}
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return 0, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil || msg.ConversationID != conversationID {
		return 0, apperr.New(apperr.KindNotFound, "message_not_found", "message not found", nil)
	}
	return s.store.AddReaction(ctx, messageID, delta)
}

// CacheStats reports semantic cache counters.
func (s *Service) CacheStats() semcache.Stats {
	return s.cache.Stats()
}

// SweepCache purges expired cache entries now.
func (s *Service) SweepCache() int {
	return s.cache.Sweep()
}

// ListEvents returns analytics events for a conversation.
func (s *Service) ListEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	return s.store.ListEvents(ctx, conversationID, afterTs, types, limit)
}
