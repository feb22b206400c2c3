// Package models provides the model catalog consulted during session creation
// and session/setModel validation. The catalog is a static builtin list,
// optionally refreshed from a fetcher with a TTL cache.
package models

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acpgate/acpgate/acp"
)

// UnknownModelError reports a model id outside the catalog.
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %q", e.ID)
}

// builtin is the fallback catalog when no fetcher is configured or the last
// fetch is stale and failing.
var builtin = []acp.ModelInfo{
	{ModelID: "default", Name: "Default", Description: "The agent's default model"},
	{ModelID: "opus", Name: "Opus", Description: "Most capable, slower"},
	{ModelID: "sonnet", Name: "Sonnet", Description: "Balanced capability and speed"},
	{ModelID: "haiku", Name: "Haiku", Description: "Fastest, lightest"},
}

// Fetcher retrieves the current model list from an external source.
type Fetcher func() ([]acp.ModelInfo, error)

// Catalog answers model lookups. Fetched lists are cached for the TTL;
// fetch failures fall back to the last good list, then to the builtins.
type Catalog struct {
	fetch     Fetcher
	ttl       time.Duration
	mu        sync.Mutex
	cached    []acp.ModelInfo
	fetchedAt time.Time
	now       func() time.Time
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithFetcher installs a remote fetcher refreshed at most once per ttl.
func WithFetcher(f Fetcher, ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.fetch = f
		c.ttl = ttl
	}
}

// NewCatalog creates a catalog serving the builtin list, plus any options.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the current model list.
func (c *Catalog) List() []acp.ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetch != nil {
		if c.cached == nil || c.now().Sub(c.fetchedAt) > c.ttl {
			fetched, err := c.fetch()
			if err != nil {
				slog.Warn("model list fetch failed", "error", err)
			} else {
				c.cached = fetched
				c.fetchedAt = c.now()
			}
		}
		if c.cached != nil {
			out := make([]acp.ModelInfo, len(c.cached))
			copy(out, c.cached)
			return out
		}
	}

	out := make([]acp.ModelInfo, len(builtin))
	copy(out, builtin)
	return out
}

// Validate returns nil if the id is in the catalog, *UnknownModelError
// otherwise. The empty id is valid and means "agent default".
func (c *Catalog) Validate(id string) error {
	if id == "" {
		return nil
	}
	for _, m := range c.List() {
		if m.ModelID == id {
			return nil
		}
	}
	return &UnknownModelError{ID: id}
}
