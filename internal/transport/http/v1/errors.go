package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err as {"error":{"code","message"}}. The wrapped cause
// is logged, never returned.
func (h *Handler) writeError(c echo.Context, err error) error {
	return h.writeErrorWith(c, err, nil)
}

func (h *Handler) writeErrorWith(c echo.Context, err error, result interface{}) error {
	status := apperr.HTTPStatus(err)
	code, message := apperr.Public(err)
	if status >= 500 {
		h.log.Error("request failed", "path", c.Path(), "code", code, "error", err)
	}
	body := map[string]interface{}{
		"error": errorBody{Code: code, Message: message},
	}
	if result != nil {
		body["result"] = result
	}
	return c.JSON(status, body)
}

func (h *Handler) badRequest(c echo.Context, message string) error {
	return h.writeError(c, apperr.Validation(message))
}
