// Package provider defines the closed set of redundant cloud providers the
// failover engine chooses between.
package provider

import (
	"fmt"
	"sort"
)

// ID identifies a provider, e.g. "aws".
type ID string

// Provider is the static description of a provider. It never changes after
// startup.
type Provider struct {
	ID                ID      `yaml:"id" json:"id"`
	Name              string  `yaml:"name" json:"name"`
	Region            string  `yaml:"region" json:"region"`
	Priority          int     `yaml:"priority" json:"priority"`
	BaseLatencyMs     float64 `yaml:"base_latency_ms" json:"base_latency_ms"`
	BaseReliability   float64 `yaml:"base_reliability" json:"base_reliability"`
	CostPerHour       float64 `yaml:"cost_per_hour" json:"cost_per_hour"`
	StorageCostPerGB  float64 `yaml:"storage_cost_per_gb" json:"storage_cost_per_gb"`
	TransferCostPerGB float64 `yaml:"transfer_cost_per_gb" json:"transfer_cost_per_gb"`
	HealthEndpoint    string  `yaml:"health_endpoint" json:"health_endpoint"`
}

// Catalog holds the configured providers ordered by priority rank.
type Catalog struct {
	ordered []Provider
	byID    map[ID]Provider
}

// NewCatalog builds a catalog. Duplicate or empty IDs are rejected.
func NewCatalog(providers []Provider) (*Catalog, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	c := &Catalog{
		ordered: make([]Provider, 0, len(providers)),
		byID:    make(map[ID]Provider, len(providers)),
	}
	for _, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider with empty id")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.ID)
		}
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
	}

	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].Priority != c.ordered[j].Priority {
			return c.ordered[i].Priority < c.ordered[j].Priority
		}
		return c.ordered[i].ID < c.ordered[j].ID
	})
	return c, nil
}

// Get returns the provider with the given id.
func (c *Catalog) Get(id ID) (Provider, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Has reports whether id is a configured provider.
func (c *Catalog) Has(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns the providers in priority order.
func (c *Catalog) All() []Provider {
	out := make([]Provider, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// IDs returns provider ids in priority order.
func (c *Catalog) IDs() []ID {
	ids := make([]ID, len(c.ordered))
	for i, p := range c.ordered {
		ids[i] = p.ID
	}
	return ids
}

// Len returns the number of providers.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// CostRange returns the minimum and maximum hourly cost across the catalog.
func (c *Catalog) CostRange() (min, max float64) {
	for i, p := range c.ordered {
		if i == 0 || p.CostPerHour < min {
			min = p.CostPerHour
		}
		if i == 0 || p.CostPerHour > max {
			max = p.CostPerHour
		}
	}
	return min, max
}

// Defaults returns the stock three-provider setup.
func Defaults() []Provider {
	return []Provider{
		{
			ID:                "aws",
			Name:              "Amazon Web Services",
			Region:            "us-east-1",
			Priority:          1,
			BaseLatencyMs:     25.0,
			BaseReliability:   0.998,
			CostPerHour:       0.75,
			StorageCostPerGB:  0.023,
			TransferCostPerGB: 0.09,
			HealthEndpoint:    "https://httpstat.us/200",
		},
		{
			ID:                "azure",
			Name:              "Microsoft Azure",
			Region:            "eastus",
			Priority:          2,
			BaseLatencyMs:     30.0,
			BaseReliability:   0.996,
			CostPerHour:       0.80,
			StorageCostPerGB:  0.018,
			TransferCostPerGB: 0.08,
			HealthEndpoint:    "https://httpstat.us/200",
		},
		{
			ID:                "gcp",
			Name:              "Google Cloud Platform",
			Region:            "us-central1",
			Priority:          3,
			BaseLatencyMs:     28.0,
			BaseReliability:   0.997,
			CostPerHour:       0.72,
			StorageCostPerGB:  0.020,
			TransferCostPerGB: 0.11,
			HealthEndpoint:    "https://httpstat.us/200",
		},
	}
}
