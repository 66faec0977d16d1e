package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Record is the constraint satisfied by pointers to the entity types.
type Record[T any] interface {
	*T
	Key() string
	SetKey(id string)
	Normalize()
	Clone() T
}

// persistFunc writes a collection snapshot. It never fails the caller.
type persistFunc func(ctx context.Context, collection string, records any)

// collection is an insertion-ordered cache of one entity type. Every mutation
// and the snapshot write that follows it happen under the write lock, so
// snapshots reach the backing in mutation order.
type collection[T any, P Record[T]] struct {
	name    string
	metrics *Metrics
	persist persistFunc
	// conflicts reports whether two distinct records collide on a unique field.
	conflicts func(a, b P) bool

	mu    sync.RWMutex
	order []string
	items map[string]P
}

func newCollection[T any, P Record[T]](name string, metrics *Metrics, persist persistFunc) *collection[T, P] {
	return &collection[T, P]{
		name:    name,
		metrics: metrics,
		persist: persist,
		items:   make(map[string]P),
	}
}

// decode replaces the contents with the records in payload. Records without
// an id and repeated ids are dropped. Records that collide on a unique field
// are kept and counted in the returned loadStats.
func (c *collection[T, P]) decode(payload []byte) (loadStats, error) {
	var records []T
	if err := json.Unmarshal(payload, &records); err != nil {
		return loadStats{}, fmt.Errorf("decode %s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.items = make(map[string]P, len(records))
	var stats loadStats
	for i := range records {
		rec := P(&records[i])
		if rec.Key() == "" {
			stats.dropped++
			continue
		}
		if _, dup := c.items[rec.Key()]; dup {
			stats.dropped++
			continue
		}
		rec.Normalize()
		if c.checkConflictLocked(rec) != nil {
			stats.conflicting = append(stats.conflicting, rec.Key())
		}
		c.items[rec.Key()] = rec
		c.order = append(c.order, rec.Key())
	}
	c.metrics.setRecords(c.name, len(c.order))
	return stats, nil
}

// loadStats describes what decode skipped or flagged.
type loadStats struct {
	dropped     int
	conflicting []string
}

// seed inserts records without checks and persists the result.
func (c *collection[T, P]) seed(ctx context.Context, records []T, write bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range records {
		rec := P(&records[i])
		if _, exists := c.items[rec.Key()]; exists {
			continue
		}
		rec.Normalize()
		c.items[rec.Key()] = rec
		c.order = append(c.order, rec.Key())
	}
	c.metrics.setRecords(c.name, len(c.order))
	if write {
		c.flushLocked(ctx)
	}
}

func (c *collection[T, P]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return rec.Clone(), true
}

func (c *collection[T, P]) find(match func(P) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if rec := c.items[id]; match(rec) {
			return rec.Clone(), true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T, P]) list(match func(P) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		rec := c.items[id]
		if match != nil && !match(rec) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

func (c *collection[T, P]) create(ctx context.Context, rec T) (T, error) {
	p := P(&rec)
	if p.Key() == "" {
		p.SetKey(uuid.NewString())
	}
	p.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[p.Key()]; exists {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", c.name, p.Key(), ErrDuplicateID)
	}
	if err := c.checkConflictLocked(p); err != nil {
		var zero T
		return zero, err
	}
	stored := p.Clone()
	c.items[p.Key()] = P(&stored)
	c.order = append(c.order, p.Key())
	c.metrics.operation(c.name, "create")
	c.metrics.setRecords(c.name, len(c.order))
	c.flushLocked(ctx)
	return p.Clone(), nil
}

func (c *collection[T, P]) update(ctx context.Context, id string, mutate func(P)) (T, bool, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.items[id]
	if !ok {
		return zero, false, nil
	}
	next := current.Clone()
	p := P(&next)
	mutate(p)
	p.SetKey(id)
	p.Normalize()
	if c.conflicts != nil && !c.conflicts(current, p) {
		if err := c.checkConflictLocked(p); err != nil {
			return zero, true, err
		}
	}
	c.items[id] = p
	c.metrics.operation(c.name, "update")
	c.flushLocked(ctx)
	return p.Clone(), true, nil
}

func (c *collection[T, P]) delete(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.metrics.operation(c.name, "delete")
	c.metrics.setRecords(c.name, len(c.order))
	c.flushLocked(ctx)
	return true
}

func (c *collection[T, P]) checkConflictLocked(candidate P) error {
	if c.conflicts == nil {
		return nil
	}
	for _, id := range c.order {
		if id == candidate.Key() {
			continue
		}
		if c.conflicts(c.items[id], candidate) {
			return fmt.Errorf("%s %q: %w", c.name, candidate.Key(), ErrConflict)
		}
	}
	return nil
}

// flushLocked hands the collection, in insertion order, to the persist hook.
// Callers hold c.mu.
func (c *collection[T, P]) flushLocked(ctx context.Context) {
	records := make([]T, 0, len(c.order))
	for _, id := range c.order {
		records = append(records, *c.items[id])
	}
	c.persist(ctx, c.name, records)
}
