package sideeffect

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

type spyHandler struct {
	runs int
	err  error
}

func (h *spyHandler) Name() string { return "spy" }

func (h *spyHandler) Run(ctx context.Context, exec *domain.ItemExecution, run *domain.Run) error {
	h.runs++
	return h.err
}

func allowAll(ctx context.Context, tier domain.Tier) (bool, error) { return true, nil }

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()
	h := &spyHandler{}

	require.Error(t, r.Register("", allowAll, h))
	require.Error(t, r.Register("item", nil, h))
	require.Error(t, r.Register("item", allowAll, nil))
	require.NoError(t, r.Register("item", allowAll, h))
	require.Error(t, r.Register("item", allowAll, h), "second registration for one item must fail")
}

func TestMaybeTriggerGating(t *testing.T) {
	r := NewRegistry()
	h := &spyHandler{}
	r.MustRegister("brand-identity", func(ctx context.Context, tier domain.Tier) (bool, error) {
		return tier != domain.TierStarter, nil
	}, h)

	exec := &domain.ItemExecution{ItemID: "brand-identity"}

	r.MaybeTrigger(context.Background(), exec, &domain.Run{Tier: domain.TierStarter})
	assert.Equal(t, 0, h.runs)

	r.MaybeTrigger(context.Background(), exec, &domain.Run{Tier: domain.TierGrowth})
	assert.Equal(t, 1, h.runs)
}

func TestMaybeTriggerUnregisteredItem(t *testing.T) {
	r := NewRegistry()
	r.MaybeTrigger(context.Background(), &domain.ItemExecution{ItemID: "ghost"}, &domain.Run{Tier: domain.TierGrowth})
}

func TestMaybeTriggerSwallowsErrors(t *testing.T) {
	r := NewRegistry()
	h := &spyHandler{err: fmt.Errorf("boom")}
	r.MustRegister("a", allowAll, h)
	r.MustRegister("b", func(ctx context.Context, tier domain.Tier) (bool, error) {
		return false, fmt.Errorf("policy unavailable")
	}, &spyHandler{})

	// Neither a failing handler nor a failing gate panics or propagates.
	r.MaybeTrigger(context.Background(), &domain.ItemExecution{ItemID: "a"}, &domain.Run{Tier: domain.TierGrowth})
	assert.Equal(t, 1, h.runs)
	r.MaybeTrigger(context.Background(), &domain.ItemExecution{ItemID: "b"}, &domain.Run{Tier: domain.TierGrowth})
}
