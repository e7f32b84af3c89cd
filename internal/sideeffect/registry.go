// Package sideeffect holds the trigger registry and the post-processing
// handlers tied to specific work items.
//
// Handlers follow a best-effort annotation contract: they append their
// outcome (asset lists, live URLs, warning blocks) to the triggering item's
// recorded output and never change its completed status or abort the run.
package sideeffect

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// Handler is a post-processing routine run after one specific item completes.
type Handler interface {
	Name() string
	Run(ctx context.Context, exec *domain.ItemExecution, run *domain.Run) error
}

// Gate decides whether a tier unlocks a registered handler.
type Gate func(ctx context.Context, tier domain.Tier) (bool, error)

type entry struct {
	gate    Gate
	handler Handler
}

// Registry maps item ids to their gated handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty trigger registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds a handler to an item id. One handler per item.
func (r *Registry) Register(itemID string, gate Gate, h Handler) error {
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}
	if gate == nil {
		return fmt.Errorf("gate is required for %s", itemID)
	}
	if h == nil {
		return fmt.Errorf("handler is required for %s", itemID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[itemID]; exists {
		return fmt.Errorf("handler already registered for %s", itemID)
	}
	r.entries[itemID] = entry{gate: gate, handler: h}
	return nil
}

// MustRegister binds a handler or panics.
func (r *Registry) MustRegister(itemID string, gate Gate, h Handler) {
	if err := r.Register(itemID, gate, h); err != nil {
		panic(err)
	}
}

// MaybeTrigger runs the handler registered for itemID, if any, when the gate
// admits the run's tier. Handler failures are logged and swallowed; the
// handlers annotate their own outcome onto the item output.
func (r *Registry) MaybeTrigger(ctx context.Context, exec *domain.ItemExecution, run *domain.Run) {
	r.mu.RLock()
	e, ok := r.entries[exec.ItemID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	allowed, err := e.gate(ctx, run.Tier)
	if err != nil {
		log.Printf("ERROR: side effect gate for %s failed: %v", exec.ItemID, err)
		return
	}
	if !allowed {
		return
	}

	log.Printf("INFO: triggering side effect %s for item %s in run %s", e.handler.Name(), exec.ItemID, run.RunID)
	if err := e.handler.Run(ctx, exec, run); err != nil {
		log.Printf("WARN: side effect %s for item %s failed: %v", e.handler.Name(), exec.ItemID, err)
	}
}
