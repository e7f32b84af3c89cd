// Package policy evaluates tier entitlements: which side-effect families a
// tier unlocks and which delivery format it receives.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// Engine is the OPA tier policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Entitlements is the decision for one tier.
type Entitlements struct {
	Assets bool
	Deploy bool
	Format domain.PackageFormat
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tier_policy"),
		rego.Module("tier_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Entitlements evaluates the policy for one tier.
func (e *Engine) Entitlements(ctx context.Context, tier domain.Tier) (Entitlements, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"tier": string(tier)}))
	if err != nil {
		return Entitlements{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Entitlements{Format: domain.PackageFormatDocument}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Entitlements{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	out := Entitlements{Format: domain.PackageFormatDocument}
	if v, ok := doc["assets"].(bool); ok {
		out.Assets = v
	}
	if v, ok := doc["deploy"].(bool); ok {
		out.Deploy = v
	}
	if v, ok := doc["format"].(string); ok && v != "" {
		out.Format = domain.PackageFormat(v)
	}
	return out, nil
}

// DefaultPolicy is the default tier policy content.
const DefaultPolicy = `
package tier_policy

rank = {"starter": 1, "growth": 2, "enterprise": 3}

default assets = false
default deploy = false
default format = "document"

# Logo asset fan-out unlocks at growth.
assets {
	rank[input.tier] >= 2
}

# External site deployment unlocks at enterprise.
deploy {
	rank[input.tier] >= 3
}

# Archive delivery for every tier above starter.
format = "archive" {
	rank[input.tier] >= 2
}
`
