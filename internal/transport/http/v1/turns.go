package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// CreateTurn answers one user message in a conversation.
// POST /v1/conversations/:conversation_id/turns
//
// Turns that end blocked, over quota or failed respond with the error body
// plus the partial result under "result".
func (h *Handler) CreateTurn(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	req.SessionID = c.Param("conversation_id")
	if req.RequestID == "" {
		req.RequestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if err := h.validate.Validate(&req); err != nil {
		return h.writeError(c, err)
	}

	res, err := h.service.ProcessTurn(c.Request().Context(), req)
	if err != nil {
		if res != nil {
			return h.writeErrorWith(c, err, res)
		}
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
