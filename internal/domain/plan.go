package domain

import "time"

// Entitlements are the per-plan feature switches and limits.
type Entitlements struct {
	Plan             string  `json:"plan"`
	BranchingEnabled bool    `json:"branching_enabled"`
	MaxBranches      int     `json:"max_branches"`
	MaxBranchDepth   int     `json:"max_branch_depth"`
	CacheEnabled     bool    `json:"cache_enabled"`
	CacheThreshold   float64 `json:"cache_threshold"`
	CacheTTLSeconds  int     `json:"cache_ttl_seconds"`
	DailyUnits       int64   `json:"daily_units"`
	MonthlyUnits     int64   `json:"monthly_units"`
}

// CacheTTL returns the cache lifetime for this plan.
func (e Entitlements) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSeconds) * time.Second
}
