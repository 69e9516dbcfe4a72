package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// UpdateConversationRequest toggles conversation flags. Nil fields are left alone.
type UpdateConversationRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	Pinned   *bool  `json:"pinned,omitempty"`
	Archived *bool  `json:"archived,omitempty"`
}

// ReactionRequest adds or removes one reaction.
type ReactionRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Delta  int    `json:"delta" validate:"oneof=-1 1"`
}

// CreateConversation opens a conversation.
// POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	var req domain.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	if err := h.validate.Validate(&req); err != nil {
		return h.writeError(c, err)
	}

	conv, err := h.service.CreateConversation(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// ListConversations lists a user's conversations, pinned first.
// GET /v1/conversations?user_id=&include_archived=&limit=
func (h *Handler) ListConversations(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	includeArchived, _ := strconv.ParseBool(c.QueryParam("include_archived"))
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	convs, err := h.service.ListConversations(c.Request().Context(), userID, includeArchived, limit)
	if err != nil {
		return h.writeError(c, err)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// GetConversation fetches one conversation.
// GET /v1/conversations/:conversation_id?user_id=
func (h *Handler) GetConversation(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	conv, err := h.service.GetConversation(c.Request().Context(), c.Param("conversation_id"), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// UpdateConversation pins or archives a conversation.
// PATCH /v1/conversations/:conversation_id
func (h *Handler) UpdateConversation(c echo.Context) error {
	var req UpdateConversationRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	if err := h.validate.Validate(&req); err != nil {
		return h.writeError(c, err)
	}

	conv, err := h.service.UpdateConversation(c.Request().Context(), c.Param("conversation_id"), req.UserID, req.Pinned, req.Archived)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation with its messages and branches.
// DELETE /v1/conversations/:conversation_id?user_id=
func (h *Handler) DeleteConversation(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	if err := h.service.DeleteConversation(c.Request().Context(), c.Param("conversation_id"), userID); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMessages returns the messages a turn on branch_id would see.
// GET /v1/conversations/:conversation_id/messages?user_id=&branch_id=
func (h *Handler) ListMessages(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	branchID := c.QueryParam("branch_id")

	messages, err := h.service.ListMessages(c.Request().Context(), c.Param("conversation_id"), userID, branchID)
	if err != nil {
		return h.writeError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"branch_id": branchID,
		"messages":  messages,
	})
}

// React adds or removes a reaction on a message.
// POST /v1/conversations/:conversation_id/messages/:message_id/reactions
func (h *Handler) React(c echo.Context) error {
	var req ReactionRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	if err := h.validate.Validate(&req); err != nil {
		return h.writeError(c, err)
	}

	count, err := h.service.React(c.Request().Context(), c.Param("conversation_id"), req.UserID, c.Param("message_id"), req.Delta)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message_id": c.Param("message_id"),
		"reactions":  count,
	})
}
