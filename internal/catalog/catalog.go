// Package catalog holds the work item catalog: the seeded list of generated
// content units, their tier membership and their declared dependencies.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

//go:embed catalog.yaml
var seedYAML []byte

type seedFile struct {
	Items []domain.WorkItem `yaml:"items"`
}

// Catalog is the immutable set of work item definitions.
type Catalog struct {
	items []domain.WorkItem
	byID  map[string]domain.WorkItem
}

// Load parses and validates the embedded seed catalog.
func Load() (*Catalog, error) {
	return Parse(seedYAML)
}

// Parse builds a Catalog from YAML seed data.
//
// Validation rejects empty or duplicate ids, items without tier membership,
// and dependencies referencing unknown items. It does not order-check
// dependencies; that is the planner's job.
func Parse(data []byte) (*Catalog, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	if len(seed.Items) == 0 {
		return nil, fmt.Errorf("catalog seed contains no items")
	}

	byID := make(map[string]domain.WorkItem, len(seed.Items))
	for _, item := range seed.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item with empty id")
		}
		if _, exists := byID[item.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog item id: %s", item.ID)
		}
		if item.DisplayName == "" {
			return nil, fmt.Errorf("catalog item %s has no display name", item.ID)
		}
		if len(item.Tiers) == 0 {
			return nil, fmt.Errorf("catalog item %s belongs to no tier", item.ID)
		}
		byID[item.ID] = item
	}
	for _, item := range seed.Items {
		for _, dep := range item.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("catalog item %s depends on unknown item %s", item.ID, dep)
			}
			if dep == item.ID {
				return nil, fmt.Errorf("catalog item %s depends on itself", item.ID)
			}
		}
	}

	items := make([]domain.WorkItem, len(seed.Items))
	copy(items, seed.Items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].OrderIndex != items[j].OrderIndex {
			return items[i].OrderIndex < items[j].OrderIndex
		}
		return items[i].ID < items[j].ID
	})

	return &Catalog{items: items, byID: byID}, nil
}

// ItemsForTier returns the items whose tier membership includes tier, in
// ascending order index. An unknown tier yields an empty slice, not an error.
func (c *Catalog) ItemsForTier(tier domain.Tier) []domain.WorkItem {
	var out []domain.WorkItem
	for _, item := range c.items {
		if item.InTier(tier) {
			out = append(out, item)
		}
	}
	return out
}

// Item looks up a single definition by id.
func (c *Catalog) Item(id string) (domain.WorkItem, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Items returns every definition in ascending order index.
func (c *Catalog) Items() []domain.WorkItem {
	out := make([]domain.WorkItem, len(c.items))
	copy(out, c.items)
	return out
}
