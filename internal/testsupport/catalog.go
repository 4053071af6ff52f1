package testsupport

import (
	"context"
	"sync"

	"avpackaging/internal/services"
	"avpackaging/internal/services/aspace"
)

// Catalog is an in-memory metadata.Catalog.
type Catalog struct {
	mu      sync.Mutex
	Matches map[string][]string
	Dates   map[string]aspace.Date
	FindErr error
	Lookups []string
}

// NewCatalog returns a catalog where refID resolves to uri with date attached.
func NewCatalog(refID, uri string, date aspace.Date) *Catalog {
	return &Catalog{
		Matches: map[string][]string{refID: {uri}},
		Dates:   map[string]aspace.Date{uri: date},
	}
}

func (c *Catalog) FindByRefID(_ context.Context, refID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Lookups = append(c.Lookups, refID)
	if c.FindErr != nil {
		return nil, c.FindErr
	}
	return append([]string(nil), c.Matches[refID]...), nil
}

func (c *Catalog) ClosestDate(_ context.Context, uri string) (aspace.Date, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	date, ok := c.Dates[uri]
	if !ok {
		return aspace.Date{}, services.Wrap(services.ErrNotFound, "resolving_metadata", "closest date", uri, nil)
	}
	return date, nil
}
