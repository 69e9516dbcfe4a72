package internalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/semcache"
)

type fakeOps struct {
	stats   semcache.Stats
	swept   int
	events  []domain.Event
	err     error
	afterTs int64
	types   []string
	limit   int
}

func (f *fakeOps) CacheStats() semcache.Stats { return f.stats }

func (f *fakeOps) SweepCache() int { return f.swept }

func (f *fakeOps) ListEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	f.afterTs, f.types, f.limit = afterTs, types, limit
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Event
	for _, ev := range f.events {
		if ev.ConversationID == conversationID && ev.Ts > afterTs {
			out = append(out, ev)
		}
	}
	return out, nil
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestCacheEndpoints(t *testing.T) {
	ops := &fakeOps{stats: semcache.Stats{Entries: 3, Hits: 7}, swept: 2}
	h := NewHandler(ops, logger.NewNop())

	rec := serve(h, http.MethodGet, "/internal/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats semcache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(7), stats.Hits)

	rec = serve(h, http.MethodPost, "/internal/cache/sweep")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":2}`, rec.Body.String())
}

func TestListEvents(t *testing.T) {
	ops := &fakeOps{events: []domain.Event{
		{EventID: "e1", ConversationID: "c1", Ts: 10, Type: domain.EventTypeTurnCompleted},
		{EventID: "e2", ConversationID: "c1", Ts: 20, Type: domain.EventTypeCacheHit},
	}}
	h := NewHandler(ops, logger.NewNop())

	rec := serve(h, http.MethodGet, "/internal/conversations/c1/events?after_ts=10&types=cache_hit,%20turn_completed&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []domain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "e2", resp.Events[0].EventID)
	assert.Equal(t, int64(10), ops.afterTs)
	assert.Equal(t, []string{"cache_hit", "turn_completed"}, ops.types)
	assert.Equal(t, 5, ops.limit)

	rec = serve(h, http.MethodGet, "/internal/conversations/other/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
	assert.Equal(t, 100, ops.limit)
}

func TestListEventsFailure(t *testing.T) {
	h := NewHandler(&fakeOps{err: errors.New("disk gone")}, logger.NewNop())

	rec := serve(h, http.MethodGet, "/internal/conversations/c1/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestStreamEvents(t *testing.T) {
	ops := &fakeOps{events: []domain.Event{
		{EventID: "e1", ConversationID: "c1", Ts: 10, Type: domain.EventTypeTurnCompleted},
		{EventID: "e2", ConversationID: "c1", Ts: 20, Type: domain.EventTypeBranchCreated},
	}}
	h := NewHandler(ops, logger.NewNop())
	h.pollInterval = 5 * time.Millisecond
	h.maxStream = 50 * time.Millisecond

	rec := serve(h, http.MethodGet, "/internal/conversations/c1/events/stream")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: turn_completed\n"))
	assert.Equal(t, 1, strings.Count(body, "event: branch_created\n"))
	assert.Less(t, strings.Index(body, "turn_completed"), strings.Index(body, "branch_created"))
}
