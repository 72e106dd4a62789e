package catalog

import (
	"context"
	"fmt"
)

// Inventory lists the image references present in the isolation backend.
type Inventory interface {
	ImageTags(ctx context.Context) ([]string, error)
}

// Snapshot is a point-in-time view of which configured versions can run.
type Snapshot struct {
	AvailableVersions     []string            `json:"availableVersions"`
	TotalAvailable        int                 `json:"totalAvailable"`
	TotalConfigured       int                 `json:"totalConfigured"`
	GroupedByMinorVersion map[string][]string `json:"groupedByMinorVersion"`
	LatestVersion         *string             `json:"latestVersion"`
}

// Prober checks the catalog against the backend's image inventory.
// Every call hits the backend; nothing is cached.
type Prober struct {
	catalog   *Catalog
	inventory Inventory
}

// NewProber creates a Prober for the given catalog and inventory.
func NewProber(c *Catalog, inv Inventory) *Prober {
	return &Prober{catalog: c, inventory: inv}
}

// Probe returns the versions whose images are present, highest first, grouped by major.minor.
func (p *Prober) Probe(ctx context.Context) (Snapshot, error) {
	present, err := p.present(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	available := []string{}
	grouped := map[string][]string{}
	for _, id := range p.catalog.order {
		if !present[p.catalog.images[id]] {
			continue
		}
		available = append(available, id)
		key := GroupKey(id)
		grouped[key] = append(grouped[key], id)
	}

	snap := Snapshot{
		AvailableVersions:     available,
		TotalAvailable:        len(available),
		TotalConfigured:       p.catalog.Len(),
		GroupedByMinorVersion: grouped,
	}
	if len(available) > 0 {
		latest := available[0]
		snap.LatestVersion = &latest
	}
	return snap, nil
}

// Missing returns the configured versions whose images are not present, highest first.
func (p *Prober) Missing(ctx context.Context) ([]string, error) {
	present, err := p.present(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range p.catalog.order {
		if !present[p.catalog.images[id]] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (p *Prober) present(ctx context.Context) (map[string]bool, error) {
	tags, err := p.inventory.ImageTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	present := make(map[string]bool, len(tags))
	for _, tag := range tags {
		present[tag] = true
	}
	return present, nil
}
