package model

import (
	"fmt"
	"sort"
)

// Category is a badge category scored from one numeric signal, e.g. "hodl"
// (token balance) or "lp" (liquidity position USD value).
type Category string

const (
	CategoryHodl Category = "hodl"
	CategoryLP   Category = "lp"
)

// Tier is a named rank within a category, gated by an inclusive lower
// threshold on the category's signal value.
type Tier struct {
	ID        string  `yaml:"id"`
	Threshold float64 `yaml:"threshold"`
}

// CategorySpec binds a category to its upstream asset identifier and its
// ascending threshold table. Immutable after load.
type CategorySpec struct {
	Name    Category `yaml:"name"`
	AssetID string   `yaml:"asset"`
	Tiers   []Tier   `yaml:"tiers"`
}

// PickTier returns the highest tier whose threshold is <= value, or
// ("", false) when value is below the lowest threshold.
func (c CategorySpec) PickTier(value float64) (string, bool) {
	// Tiers are validated ascending; scan from the top.
	for i := len(c.Tiers) - 1; i >= 0; i-- {
		if value >= c.Tiers[i].Threshold {
			return c.Tiers[i].ID, true
		}
	}
	return "", false
}

// TierIDs returns every tier id of the category, lowest first.
func (c CategorySpec) TierIDs() []string {
	ids := make([]string, len(c.Tiers))
	for i, t := range c.Tiers {
		ids[i] = t.ID
	}
	return ids
}

// TierTable holds every configured category. Loaded once at startup.
type TierTable struct {
	Categories []CategorySpec `yaml:"categories"`
}

// Category looks up a category spec by name.
func (t TierTable) Category(name Category) (CategorySpec, bool) {
	for _, c := range t.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySpec{}, false
}

// Validate checks that every category has at least one tier, thresholds are
// strictly ascending, and tier ids are unique across the whole table.
func (t TierTable) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("tier table has no categories")
	}
	seen := make(map[string]Category)
	for _, c := range t.Categories {
		if c.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if c.AssetID == "" {
			return fmt.Errorf("category %s: missing asset id", c.Name)
		}
		if len(c.Tiers) == 0 {
			return fmt.Errorf("category %s: no tiers", c.Name)
		}
		if !sort.SliceIsSorted(c.Tiers, func(i, j int) bool {
			return c.Tiers[i].Threshold < c.Tiers[j].Threshold
		}) {
			return fmt.Errorf("category %s: thresholds not ascending", c.Name)
		}
		for i := 1; i < len(c.Tiers); i++ {
			if c.Tiers[i].Threshold == c.Tiers[i-1].Threshold {
				return fmt.Errorf("category %s: duplicate threshold %v", c.Name, c.Tiers[i].Threshold)
			}
		}
		for _, tier := range c.Tiers {
			if tier.ID == "" {
				return fmt.Errorf("category %s: tier with empty id", c.Name)
			}
			if owner, dup := seen[tier.ID]; dup {
				return fmt.Errorf("tier id %q appears in both %s and %s", tier.ID, owner, c.Name)
			}
			seen[tier.ID] = c.Name
		}
	}
	return nil
}

// DefaultTierTable returns the built-in threshold tables, used when no tier
// file is configured.
func DefaultTierTable() TierTable {
	return TierTable{Categories: []CategorySpec{
		{
			Name:    CategoryHodl,
			AssetID: "hfc",
			Tiers: []Tier{
				{ID: "shrimp", Threshold: 100},
				{ID: "crab", Threshold: 1_000},
				{ID: "fish", Threshold: 10_000},
				{ID: "dolphin", Threshold: 100_000},
				{ID: "shark", Threshold: 500_000},
				{ID: "whale", Threshold: 1_000_000},
			},
		},
		{
			Name:    CategoryLP,
			AssetID: "hfc-lp",
			Tiers: []Tier{
				{ID: "lp-bronze", Threshold: 100},
				{ID: "lp-silver", Threshold: 1_000},
				{ID: "lp-gold", Threshold: 10_000},
				{ID: "lp-diamond", Threshold: 100_000},
			},
		},
	}}
}
