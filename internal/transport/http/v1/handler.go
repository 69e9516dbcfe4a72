// Package v1 provides the public HTTP API of the conversation service.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	validate *RequestValidator
	metrics  prometheus.Gatherer
	log      *logger.Logger
}

// NewHandler creates a new handler. A nil gatherer serves the default registry.
func NewHandler(svc *service.Service, metrics prometheus.Gatherer, log *logger.Logger) *Handler {
	if metrics == nil {
		metrics = prometheus.DefaultGatherer
	}
	return &Handler{
		service:  svc,
		validate: NewRequestValidator(),
		metrics:  metrics,
		log:      log.With("component", "http_v1"),
	}
}

// RegisterRoutes registers public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Conversations
	e.POST("/v1/conversations", h.CreateConversation)
	e.GET("/v1/conversations", h.ListConversations)
	e.GET("/v1/conversations/:conversation_id", h.GetConversation)
	e.PATCH("/v1/conversations/:conversation_id", h.UpdateConversation)
	e.DELETE("/v1/conversations/:conversation_id", h.DeleteConversation)

	// Messages and turns
	e.GET("/v1/conversations/:conversation_id/messages", h.ListMessages)
	e.POST("/v1/conversations/:conversation_id/turns", h.CreateTurn)
	e.POST("/v1/conversations/:conversation_id/messages/:message_id/reactions", h.React)

	// Branches
	e.POST("/v1/conversations/:conversation_id/branches", h.CreateBranch)
	e.GET("/v1/conversations/:conversation_id/branches/tree", h.BranchTree)
	e.DELETE("/v1/conversations/:conversation_id/branches/:branch_id", h.DeleteBranch)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{})))
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
