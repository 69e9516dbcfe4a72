package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// DefaultPlan is what unknown or empty plans resolve to.
const DefaultPlan = "free"

// Engine is the OPA policy engine that resolves plan entitlements.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.plan_policy.entitlements"),
		rego.Module("plan_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Load builds an engine from path, or from DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Entitlements evaluates the policy for plan.
func (e *Engine) Entitlements(ctx context.Context, plan string) (domain.Entitlements, error) {
	input := map[string]interface{}{"plan": strings.ToLower(strings.TrimSpace(plan))}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.Entitlements{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.Entitlements{}, fmt.Errorf("policy returned no entitlements for plan %q", plan)
	}

	val := results[0].Expressions[0].Value
	if _, ok := val.(map[string]interface{}); !ok {
		return domain.Entitlements{}, fmt.Errorf("unexpected entitlements type %T", val)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return domain.Entitlements{}, fmt.Errorf("encode entitlements: %w", err)
	}
	var ent domain.Entitlements
	if err := json.Unmarshal(raw, &ent); err != nil {
		return domain.Entitlements{}, fmt.Errorf("decode entitlements: %w", err)
	}
	return ent, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package plan_policy

import rego.v1

plans := {
	"free": {
		"branching_enabled": false,
		"max_branches": 0,
		"max_branch_depth": 0,
		"cache_enabled": true,
		"cache_threshold": 0.92,
		"cache_ttl_seconds": 3600,
		"daily_units": 20000,
		"monthly_units": 300000,
	},
	"basic": {
		"branching_enabled": true,
		"max_branches": 1,
		"max_branch_depth": 2,
		"cache_enabled": true,
		"cache_threshold": 0.9,
		"cache_ttl_seconds": 21600,
		"daily_units": 100000,
		"monthly_units": 2000000,
	},
	"pro": {
		"branching_enabled": true,
		"max_branches": 10,
		"max_branch_depth": 5,
		"cache_enabled": true,
		"cache_threshold": 0.85,
		"cache_ttl_seconds": 86400,
		"daily_units": 500000,
		"monthly_units": 10000000,
	},
	"enterprise": {
		"branching_enabled": true,
		"max_branches": 50,
		"max_branch_depth": 8,
		"cache_enabled": true,
		"cache_threshold": 0.85,
		"cache_ttl_seconds": 86400,
		"daily_units": 5000000,
		"monthly_units": 100000000,
	},
}

default plan := "free"

plan := input.plan if plans[input.plan]

entitlements := object.union(plans[plan], {"plan": plan})
`
