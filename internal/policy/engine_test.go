package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyPlans(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	free, err := engine.Entitlements(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, "free", free.Plan)
	assert.False(t, free.BranchingEnabled)
	assert.True(t, free.CacheEnabled)
	assert.InDelta(t, 0.92, free.CacheThreshold, 1e-9)
	assert.Equal(t, int64(20000), free.DailyUnits)

	basic, err := engine.Entitlements(ctx, "basic")
	require.NoError(t, err)
	assert.True(t, basic.BranchingEnabled)
	assert.Equal(t, 1, basic.MaxBranches)
	assert.Equal(t, 2, basic.MaxBranchDepth)

	pro, err := engine.Entitlements(ctx, " PRO ")
	require.NoError(t, err)
	assert.Equal(t, "pro", pro.Plan)
	assert.Equal(t, 10, pro.MaxBranches)
	assert.Equal(t, 5, pro.MaxBranchDepth)
	assert.InDelta(t, 0.85, pro.CacheThreshold, 1e-9)
	assert.Equal(t, 86400, pro.CacheTTLSeconds)

	ent, err := engine.Entitlements(ctx, "enterprise")
	require.NoError(t, err)
	assert.Equal(t, 50, ent.MaxBranches)
	assert.Equal(t, 8, ent.MaxBranchDepth)
}

func TestUnknownPlanFallsBackToFree(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	for _, plan := range []string{"", "platinum"} {
		got, err := engine.Entitlements(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, DefaultPlan, got.Plan)
		assert.False(t, got.BranchingEnabled)
	}
}

func TestLoadFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plans.rego")
	content := `
package plan_policy

import rego.v1

entitlements := {"plan": "custom", "branching_enabled": true, "max_branches": 2, "max_branch_depth": 1, "cache_enabled": false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	engine, err := Load(ctx, path)
	require.NoError(t, err)
	got, err := engine.Entitlements(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Plan)
	assert.Equal(t, 2, got.MaxBranches)
	assert.False(t, got.CacheEnabled)

	_, err = Load(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package plan_policy\nentitlements := {")
	assert.Error(t, err)
}
