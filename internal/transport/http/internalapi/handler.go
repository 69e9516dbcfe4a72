// Package internalapi provides operator endpoints served on the internal port.
package internalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/semcache"
)

// Operator is what the internal endpoints need from the service.
type Operator interface {
	CacheStats() semcache.Stats
	SweepCache() int
	ListEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error)
}

// Handler handles internal HTTP requests.
type Handler struct {
	ops          Operator
	log          *logger.Logger
	pollInterval time.Duration
	maxStream    time.Duration
}

// NewHandler creates a new internal API handler.
func NewHandler(ops Operator, log *logger.Logger) *Handler {
	return &Handler{
		ops:          ops,
		log:          log.With("component", "internal_api"),
		pollInterval: 250 * time.Millisecond,
		maxStream:    5 * time.Minute,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/internal/cache/stats", h.CacheStats)
	e.POST("/internal/cache/sweep", h.SweepCache)
	e.GET("/internal/conversations/:conversation_id/events", h.ListEvents)
	e.GET("/internal/conversations/:conversation_id/events/stream", h.StreamEvents)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}

// CacheStats reports semantic cache counters.
// GET /internal/cache/stats
func (h *Handler) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ops.CacheStats())
}

// SweepCache purges expired cache entries now.
// POST /internal/cache/sweep
func (h *Handler) SweepCache(c echo.Context) error {
	removed := h.ops.SweepCache()
	h.log.Info("cache swept", "removed", removed)
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

// ListEvents returns a conversation's analytics events.
// GET /internal/conversations/:conversation_id/events?after_ts=&types=a,b&limit=
func (h *Handler) ListEvents(c echo.Context) error {
	afterTs, types, limit := eventQuery(c)
	events, err := h.ops.ListEvents(c.Request().Context(), c.Param("conversation_id"), afterTs, types, limit)
	if err != nil {
		h.log.Error("failed to list events", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// StreamEvents polls for new events and pushes them as server-sent events
// until the client disconnects or the stream limit is reached.
// GET /internal/conversations/:conversation_id/events/stream
func (h *Handler) StreamEvents(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("conversation_id")
	lastTs, types, limit := eventQuery(c)

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	deadline := time.Now().Add(h.maxStream)
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				return nil
			}
			events, err := h.ops.ListEvents(ctx, conversationID, lastTs, types, limit)
			if err != nil {
				h.log.Warn("failed to poll events", "error", err)
				continue
			}
			for _, ev := range events {
				if err := writeSSE(c, ev); err != nil {
					return err
				}
				if ev.Ts > lastTs {
					lastTs = ev.Ts
				}
			}
		}
	}
}

func writeSSE(c echo.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

func eventQuery(c echo.Context) (afterTs int64, types []string, limit int) {
	limit = 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	if raw := c.QueryParam("types"); raw != "" {
		for _, typ := range strings.Split(raw, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				types = append(types, typ)
			}
		}
	}
	return afterTs, types, limit
}
