// Package plan computes a verified execution order for a set of work items.
//
// Declared order indexes are treated as a tie-break hint only; the dependency
// graph is the source of truth. A catalog edit that puts a dependent ahead of
// its dependency is corrected by the planner, and a cycle is rejected as a
// configuration error before any item executes.
package plan

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// ErrCycle marks a dependency cycle in the planned item set.
var ErrCycle = errors.New("dependency cycle")

type itemHeap struct {
	items []domain.WorkItem
}

func (h itemHeap) Len() int { return len(h.items) }
func (h itemHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.OrderIndex != b.OrderIndex {
		return a.OrderIndex < b.OrderIndex
	}
	return a.ID < b.ID
}
func (h itemHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *itemHeap) Push(x any)   { h.items = append(h.items, x.(domain.WorkItem)) }
func (h *itemHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// ExecutionOrder returns the items in a dependency-consistent order.
//
// Kahn's algorithm with a min-heap ready queue keyed by (order index, id), so
// the result is deterministic and respects the declared ordering wherever the
// graph allows it. Dependencies on items outside the given set are ignored:
// lower tiers legitimately exclude some upstream items.
func ExecutionOrder(items []domain.WorkItem) ([]domain.WorkItem, error) {
	inSet := make(map[string]bool, len(items))
	for _, item := range items {
		inSet[item.ID] = true
	}

	indeg := make(map[string]int, len(items))
	dependents := make(map[string][]string, len(items))
	for _, item := range items {
		for _, dep := range item.DependsOn {
			if !inSet[dep] {
				continue
			}
			indeg[item.ID]++
			dependents[dep] = append(dependents[dep], item.ID)
		}
	}

	byID := make(map[string]domain.WorkItem, len(items))
	ready := &itemHeap{}
	heap.Init(ready)
	for _, item := range items {
		byID[item.ID] = item
		if indeg[item.ID] == 0 {
			heap.Push(ready, item)
		}
	}

	out := make([]domain.WorkItem, 0, len(items))
	for ready.Len() > 0 {
		item := heap.Pop(ready).(domain.WorkItem)
		out = append(out, item)
		deps := dependents[item.ID]
		sort.Strings(deps)
		for _, id := range deps {
			indeg[id]--
			if indeg[id] == 0 {
				heap.Push(ready, byID[id])
			}
		}
	}

	if len(out) != len(items) {
		var stuck []string
		for id, d := range indeg {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w involving items: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return out, nil
}

// Levels groups the items into dependency levels: every item in level N
// depends only on items in levels below N. Items within one level share no
// ordering constraint and are safe to attempt concurrently.
func Levels(items []domain.WorkItem) ([][]domain.WorkItem, error) {
	ordered, err := ExecutionOrder(items)
	if err != nil {
		return nil, err
	}

	inSet := make(map[string]bool, len(items))
	for _, item := range items {
		inSet[item.ID] = true
	}

	depth := make(map[string]int, len(ordered))
	maxDepth := 0
	for _, item := range ordered {
		d := 0
		for _, dep := range item.DependsOn {
			if !inSet[dep] {
				continue
			}
			if dd := depth[dep] + 1; dd > d {
				d = dd
			}
		}
		depth[item.ID] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]domain.WorkItem, maxDepth+1)
	for _, item := range ordered {
		d := depth[item.ID]
		levels[d] = append(levels[d], item)
	}
	return levels, nil
}
