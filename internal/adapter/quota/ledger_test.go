package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRedisLedger(t *testing.T, c *clock) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLedger(rdb, c.now), mr
}

// ledgers runs fn against both implementations.
func ledgers(t *testing.T, fn func(t *testing.T, l Ledger, c *clock)) {
	t.Run("memory", func(t *testing.T) {
		c := &clock{t: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
		fn(t, NewMemoryLedger(c.now), c)
	})
	t.Run("redis", func(t *testing.T) {
		c := &clock{t: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
		l, _ := newRedisLedger(t, c)
		fn(t, l, c)
	})
}

func TestLedgerDailyLimit(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, c *clock) {
		ctx := context.Background()
		lim := Limits{Daily: 100, Monthly: 1000}

		d, err := l.CanAfford(ctx, "u1", 10, lim)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		rem, err := l.Deduct(ctx, "u1", 95, lim)
		require.NoError(t, err)
		assert.Equal(t, Remaining{Daily: 5, Monthly: 905}, rem)

		d, err = l.CanAfford(ctx, "u1", 10, lim)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonDaily, d.Reason)
		assert.Equal(t, int64(95), d.DailyUsed)

		d, err = l.CanAfford(ctx, "u2", 10, lim)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		// next day resets the daily counter only
		c.t = c.t.Add(24 * time.Hour)
		d, err = l.CanAfford(ctx, "u1", 10, lim)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(0), d.DailyUsed)
		assert.Equal(t, int64(95), d.MonthlyUsed)
	})
}

func TestLedgerMonthlyLimit(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, c *clock) {
		ctx := context.Background()
		lim := Limits{Daily: 100, Monthly: 150}

		_, err := l.Deduct(ctx, "u1", 90, lim)
		require.NoError(t, err)
		c.t = c.t.Add(24 * time.Hour)
		rem, err := l.Deduct(ctx, "u1", 50, lim)
		require.NoError(t, err)
		assert.Equal(t, Remaining{Daily: 50, Monthly: 10}, rem)

		d, err := l.CanAfford(ctx, "u1", 20, lim)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonMonthly, d.Reason)
	})
}

func TestLedgerUnlimited(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, c *clock) {
		ctx := context.Background()
		rem, err := l.Deduct(ctx, "u1", 1_000_000, Limits{})
		require.NoError(t, err)
		assert.Equal(t, Remaining{Daily: Unlimited, Monthly: Unlimited}, rem)

		d, err := l.CanAfford(ctx, "u1", 1_000_000, Limits{})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestRedisLedgerSetsExpiry(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
	l, mr := newRedisLedger(t, c)

	_, err := l.Deduct(context.Background(), "u1", 5, Limits{Daily: 10})
	require.NoError(t, err)

	assert.Equal(t, dailyTTL, mr.TTL("convo:quota:u1:d:20261015"))
	assert.Equal(t, monthlyTTL, mr.TTL("convo:quota:u1:m:202610"))
	v, err := mr.Get("convo:quota:u1:d:20261015")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestRedisLedgerReadError(t *testing.T) {
	c := &clock{t: time.Now()}
	l, mr := newRedisLedger(t, c)
	mr.Close()

	_, err := l.CanAfford(context.Background(), "u1", 1, Limits{Daily: 10})
	assert.Error(t, err)
}

func TestMemoryLedgerPrunesOldPeriods(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
	l := NewMemoryLedger(c.now)
	ctx := context.Background()

	_, _ = l.Deduct(ctx, "u1", 5, Limits{})
	c.t = time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	_, _ = l.Deduct(ctx, "u1", 5, Limits{})

	assert.Len(t, l.counters, 2)
}

func TestUserIDWithColonsAccumulates(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, c *clock) {
		ctx := context.Background()
		lim := Limits{Daily: 100, Monthly: 1000}

		for _, user := range []string{"a:m:b", "x:d:y"} {
			_, err := l.Deduct(ctx, user, 30, lim)
			require.NoError(t, err)
			rem, err := l.Deduct(ctx, user, 30, lim)
			require.NoError(t, err)
			assert.Equal(t, Remaining{Daily: 40, Monthly: 940}, rem, user)
		}
	})
}
