package market

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/aether/internal/models"
)

// Cache holds the current generation of market snapshots. Readers load the
// whole generation with one atomic read and never observe a partial sync.
type Cache struct {
	mu      sync.Mutex // serializes Replace
	current atomic.Pointer[models.QuoteSet]
}

// NewCache returns an empty cache at version 0.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(&models.QuoteSet{Quotes: map[string]models.MarketSnapshot{}})
	return c
}

// Load returns the current generation. The result must not be mutated.
func (c *Cache) Load() *models.QuoteSet {
	return c.current.Load()
}

// Get returns the cached snapshot for symbol.
func (c *Cache) Get(symbol string) (models.MarketSnapshot, bool) {
	return c.current.Load().Get(symbol)
}

// Version returns the generation number of the current contents.
func (c *Cache) Version() uint64 {
	return c.current.Load().Version
}

// Replace publishes a copy of quotes as the next generation and returns it.
// Later changes to quotes by the caller do not reach the cache.
func (c *Cache) Replace(quotes map[string]models.MarketSnapshot, at time.Time) *models.QuoteSet {
	copied := make(map[string]models.MarketSnapshot, len(quotes))
	for k, v := range quotes {
		copied[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := &models.QuoteSet{
		Quotes:    copied,
		Version:   c.current.Load().Version + 1,
		UpdatedAt: at,
	}
	c.current.Store(next)
	return next
}
