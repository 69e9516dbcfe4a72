package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	dailyTTL   = 48 * time.Hour
	monthlyTTL = 32 * 24 * time.Hour
)

// RedisLedger keeps counters in Redis so several processes share a quota.
type RedisLedger struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger wraps an existing client.
func NewRedisLedger(rdb goredis.UniversalClient, now func() time.Time) *RedisLedger {
	if now == nil {
		now = time.Now
	}
	return &RedisLedger{rdb: rdb, prefix: "convo:quota", now: now}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *RedisLedger) CanAfford(ctx context.Context, userID string, units int64, lim Limits) (Decision, error) {
	dk, mk := periodKeys(r.prefix, userID, r.now())
	vals, err := r.rdb.MGet(ctx, dk, mk).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("quota read: %w", err)
	}
	daily, err := parseCounter(vals[0])
	if err != nil {
		return Decision{}, err
	}
	monthly, err := parseCounter(vals[1])
	if err != nil {
		return Decision{}, err
	}
	return decide(daily, monthly, units, lim), nil
}

func (r *RedisLedger) Deduct(ctx context.Context, userID string, units int64, lim Limits) (Remaining, error) {
	if units < 0 {
		units = 0
	}
	dk, mk := periodKeys(r.prefix, userID, r.now())

	var dailyCmd, monthlyCmd *goredis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		dailyCmd = pipe.IncrBy(ctx, dk, units)
		pipe.Expire(ctx, dk, dailyTTL)
		monthlyCmd = pipe.IncrBy(ctx, mk, units)
		pipe.Expire(ctx, mk, monthlyTTL)
		return nil
	})
	if err != nil {
		return Remaining{}, fmt.Errorf("quota deduct: %w", err)
	}
	return remaining(dailyCmd.Val(), monthlyCmd.Val(), lim), nil
}

func parseCounter(v interface{}) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("quota counter %q: %w", val, err)
		}
		return n, nil
	default:
		return 0, errors.New("quota counter has unexpected type")
	}
}
