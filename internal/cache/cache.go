package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// ErrRegionNotFound is returned for a region that holds no entries.
var ErrRegionNotFound = errors.New("region not found")

// UnavailableError is returned by Execute while the cache is suspended,
// for example during a rebalance. The caller should retry after After.
type UnavailableError struct {
	After time.Duration
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable, retry after %s", e.After)
}

// Cache is an in-memory object cache. Entries are JSON objects stored under
// a key inside a named region. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	regions map[string]map[string]ir.IRObject

	suspended atomic.Int64 // retry delay in nanoseconds, 0 when available
	open      atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{regions: map[string]map[string]ir.IRObject{}}
}

// Put stores documents in a region, replacing entries with the same key.
// Documents with an empty ID get a generated key. Returns the keys in
// input order.
func (c *Cache) Put(region string, docs ...ir.Document) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, ok := c.regions[region]
	if !ok {
		entries = map[string]ir.IRObject{}
		c.regions[region] = entries
	}
	keys := make([]string, len(docs))
	for i, d := range docs {
		key := d.ID
		if key == "" {
			key = uuid.NewString()
		}
		body := d.Body
		if body == nil {
			body = ir.IRObject{}
		}
		entries[key] = body
		keys[i] = key
	}
	return keys
}

// Get returns one entry.
func (c *Cache) Get(region, key string) (ir.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.regions[region][key]
	if !ok {
		return ir.Document{}, false
	}
	return ir.Document{ID: key, Body: body}, true
}

// Remove deletes one entry and reports whether it existed.
func (c *Cache) Remove(region, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.regions[region]
	if !ok {
		return false
	}
	if _, ok := entries[key]; !ok {
		return false
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(c.regions, region)
	}
	return true
}

// Regions lists the non-empty regions in name order.
func (c *Cache) Regions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of entries in a region.
func (c *Cache) Size(region string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regions[region])
}

// Suspend makes Execute fail with *UnavailableError until Resume.
func (c *Cache) Suspend(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	c.suspended.Store(int64(retryAfter))
}

// Resume makes the cache available again.
func (c *Cache) Resume() {
	c.suspended.Store(0)
}

// OpenIterators returns the number of iterators not yet closed.
func (c *Cache) OpenIterators() int {
	return int(c.open.Load())
}

// snapshot returns the entries of a region in key order.
func (c *Cache) snapshot(region string) ([]ir.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.regions[region]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, region)
	}
	docs := make([]ir.Document, 0, len(entries))
	for key, body := range entries {
		docs = append(docs, ir.Document{ID: key, Body: body})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Keyspaces lists the regions. It makes the cache usable as a schema
// inference source.
func (c *Cache) Keyspaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Regions(), nil
}

// DistinctValues returns the sorted distinct text values of a top-level
// attribute. Missing, null and container values are skipped.
func (c *Cache) DistinctValues(ctx context.Context, region, attribute string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := c.snapshot(region)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	values := []string{}
	for _, d := range docs {
		v, ok := d.Body.Lookup(attribute)
		if !ok {
			continue
		}
		text, ok := schema.ScalarText(v)
		if !ok || seen[text] {
			continue
		}
		seen[text] = true
		values = append(values, text)
	}
	sort.Strings(values)
	return values, nil
}

// Sample returns up to limit entries in key order, narrowed to a
// discriminator value when disc is set.
func (c *Cache) Sample(ctx context.Context, region string, disc *schema.Discriminator, limit int) ([]ir.Document, error) {
	q := c.From(region)
	if disc != nil {
		q = q.Where(Having(disc.Attribute).EqText(translate.Escape(disc.Value)))
	}
	it, err := q.MaxResults(limit).Execute(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	docs := []ir.Document{}
	for {
		d, ok := it.Next()
		if !ok {
			return docs, nil
		}
		docs = append(docs, d)
	}
}
