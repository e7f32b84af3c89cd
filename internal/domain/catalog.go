package domain

// WorkItem is an immutable catalog entry describing one unit of generated
// content. Seeded at startup, never mutated at runtime.
type WorkItem struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Section     string   `yaml:"section"`
	Tiers       []Tier   `yaml:"tiers"`
	DependsOn   []string `yaml:"depends_on"`
	Instruction string   `yaml:"instruction"`
	OrderIndex  int      `yaml:"order_index"`
}

// InTier reports whether the item belongs to the given tier.
func (w WorkItem) InTier(tier Tier) bool {
	for _, t := range w.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}
