// Package quota tracks per-user daily and monthly usage units.
package quota

import (
	"context"
	"fmt"
	"time"
)

const (
	ReasonDaily   = "daily"
	ReasonMonthly = "monthly"
)

// Unlimited is reported as the remaining balance when a limit is zero.
const Unlimited int64 = -1

// Limits are the plan allowances. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// Decision is the answer to CanAfford.
type Decision struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	DailyUsed   int64  `json:"daily_used"`
	MonthlyUsed int64  `json:"monthly_used"`
}

// Remaining is the balance left after a deduction.
type Remaining struct {
	Daily   int64 `json:"daily"`
	Monthly int64 `json:"monthly"`
}

// Ledger is the quota store.
type Ledger interface {
	CanAfford(ctx context.Context, userID string, units int64, lim Limits) (Decision, error)
	Deduct(ctx context.Context, userID string, units int64, lim Limits) (Remaining, error)
}

// decide applies lim to the current usage. Daily is checked first.
func decide(daily, monthly, units int64, lim Limits) Decision {
	d := Decision{Allowed: true, DailyUsed: daily, MonthlyUsed: monthly}
	switch {
	case lim.Daily > 0 && daily+units > lim.Daily:
		d.Allowed, d.Reason = false, ReasonDaily
	case lim.Monthly > 0 && monthly+units > lim.Monthly:
		d.Allowed, d.Reason = false, ReasonMonthly
	}
	return d
}

func remaining(daily, monthly int64, lim Limits) Remaining {
	return Remaining{Daily: left(lim.Daily, daily), Monthly: left(lim.Monthly, monthly)}
}

func left(limit, used int64) int64 {
	if limit <= 0 {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// periodKeys returns the daily and monthly counter keys for userID at now (UTC).
func periodKeys(prefix, userID string, now time.Time) (daily, monthly string) {
	now = now.UTC()
	return fmt.Sprintf("%s:%s:d:%s", prefix, userID, now.Format("20060102")),
		fmt.Sprintf("%s:%s:m:%s", prefix, userID, now.Format("200601"))
}
