// Package testutil holds shared test fixtures.
package testutil

import (
	"testing"

	"github.com/xiaot623/gogo/convo/internal/repository"
)

// NewSQLiteStore returns a migrated in-memory store closed at test cleanup.
func NewSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
