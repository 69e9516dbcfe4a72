package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/branch"
	"github.com/xiaot623/gogo/convo/internal/domain"
)

// CreateBranch forks a conversation at an earlier message.
// POST /v1/conversations/:conversation_id/branches
func (h *Handler) CreateBranch(c echo.Context) error {
	var req domain.CreateBranchRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	if err := h.validate.Validate(&req); err != nil {
		return h.writeError(c, err)
	}

	b, err := h.service.CreateBranch(c.Request().Context(), c.Param("conversation_id"), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// BranchTree returns the trunk with its nested branches.
// GET /v1/conversations/:conversation_id/branches/tree?user_id=
func (h *Handler) BranchTree(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	tree, err := h.service.BranchTree(c.Request().Context(), c.Param("conversation_id"), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	if tree == nil {
		tree = []*branch.Node{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tree": tree,
	})
}

// DeleteBranch removes a branch and its messages.
// DELETE /v1/conversations/:conversation_id/branches/:branch_id?user_id=
func (h *Handler) DeleteBranch(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return h.badRequest(c, "user_id is required")
	}
	n, err := h.service.DeleteBranch(c.Request().Context(), c.Param("conversation_id"), userID, c.Param("branch_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"branch_id":        c.Param("branch_id"),
		"messages_deleted": n,
	})
}
