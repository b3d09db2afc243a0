// Package sessioncache holds the last identity the server confirmed for this
// client. Readers always see either a whole identity or none.
package sessioncache

import (
	"sync/atomic"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// Cache stores at most one Identity. The zero value is an empty cache.
type Cache struct {
	identity atomic.Pointer[domain.Identity]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

//nolint:gochecknoglobals
var defaultCache = New()

// Default returns the process-wide cache. It is empty at process start.
func Default() *Cache {
	return defaultCache
}

// Identity returns the cached identity and whether there is one.
func (c *Cache) Identity() (domain.Identity, bool) {
	identity := c.identity.Load()
	if identity == nil {
		return domain.Identity{}, false
	}

	return *identity, true
}

// Replace swaps in identity as a whole.
func (c *Cache) Replace(identity domain.Identity) {
	c.identity.Store(&identity)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.identity.Store(nil)
}
