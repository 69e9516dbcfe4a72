// Package servicetest builds a fully wired Service for transport tests.
package servicetest

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/gogo/convo/internal/adapter/analytics"
	"github.com/xiaot623/gogo/convo/internal/adapter/llm"
	"github.com/xiaot623/gogo/convo/internal/adapter/quota"
	"github.com/xiaot623/gogo/convo/internal/config"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/policy"
	"github.com/xiaot623/gogo/convo/internal/repository"
	"github.com/xiaot623/gogo/convo/internal/service"
	"github.com/xiaot623/gogo/convo/internal/testutil"
)

// New returns a service backed by an in-memory store, the built-in plan
// policy, an in-memory quota ledger and the mock model. Analytics go to the
// store's event log.
func New(t *testing.T) (*service.Service, *repository.SQLiteStore) {
	t.Helper()

	store := testutil.NewSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to build policy engine: %v", err)
	}
	log := logger.NewNop()
	invoker := llm.NewInvoker(llm.NewMockClient(), llm.InvokerConfig{Attempts: 1, BaseDelay: time.Millisecond}, log)

	svc := service.New(service.Deps{
		Store:     store,
		Policy:    engine,
		Ledger:    quota.NewMemoryLedger(nil),
		Model:     invoker,
		Analytics: analytics.NewEventLog(store),
		Config:    config.Default(),
		Logger:    log,
	})
	t.Cleanup(svc.Wait)
	return svc, store
}
