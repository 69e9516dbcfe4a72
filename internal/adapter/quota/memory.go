package quota

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryLedger keeps counters in process. Used when no Redis is configured.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]int64
	now      func() time.Time
}

// NewMemoryLedger creates an empty in-process ledger.
func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryLedger{counters: make(map[string]int64), now: now}
}

var _ Ledger = (*MemoryLedger)(nil)

func (m *MemoryLedger) CanAfford(ctx context.Context, userID string, units int64, lim Limits) (Decision, error) {
	dk, mk := periodKeys("quota", userID, m.now())
	m.mu.Lock()
	defer m.mu.Unlock()
	return decide(m.counters[dk], m.counters[mk], units, lim), nil
}

func (m *MemoryLedger) Deduct(ctx context.Context, userID string, units int64, lim Limits) (Remaining, error) {
	dk, mk := periodKeys("quota", userID, m.now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if units > 0 {
		m.pruneLocked(dk, mk)
		m.counters[dk] += units
		m.counters[mk] += units
	}
	return remaining(m.counters[dk], m.counters[mk], lim), nil
}

// pruneLocked drops counters from earlier periods.
func (m *MemoryLedger) pruneLocked(dk, mk string) {
	_, day := splitPeriodKey(dk)
	_, month := splitPeriodKey(mk)
	for k := range m.counters {
		switch kind, period := splitPeriodKey(k); kind {
		case "d":
			if period != day {
				delete(m.counters, k)
			}
		case "m":
			if period != month {
				delete(m.counters, k)
			}
		}
	}
}

// splitPeriodKey returns the kind and period segments that end a key. User
// ids may contain colons, so only the last two segments are read.
func splitPeriodKey(key string) (kind, period string) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", ""
	}
	j := strings.LastIndex(key[:i], ":")
	if j < 0 {
		return "", ""
	}
	return key[j+1 : i], key[i+1:]
}
