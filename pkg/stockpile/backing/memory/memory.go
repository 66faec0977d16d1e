// Package memory provides a process-local backing, used by tests and by the
// "memory" storage driver.
package memory

import (
	"context"
	"sync"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
)

// Backing keeps snapshots in a map.
type Backing struct {
	mu       sync.Mutex
	payloads map[string][]byte
	saves    map[string]int
	failSave error
}

// New creates an empty in-memory backing.
func New() *Backing {
	return &Backing{
		payloads: make(map[string][]byte),
		saves:    make(map[string]int),
	}
}

// Load returns a copy of the stored payload.
func (b *Backing) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, ok := b.payloads[collection]
	if !ok {
		return nil, backing.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Save stores a copy of payload and counts the write.
func (b *Backing) Save(ctx context.Context, collection string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves[collection]++
	if b.failSave != nil {
		return b.failSave
	}
	b.payloads[collection] = append([]byte(nil), payload...)
	return nil
}

// Close is a no-op.
func (b *Backing) Close() error { return nil }

// Put seeds a payload without counting it as a save.
func (b *Backing) Put(collection string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads[collection] = append([]byte(nil), payload...)
}

// Saves returns how many times collection has been saved.
func (b *Backing) Saves(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves[collection]
}

// FailSaves makes every subsequent Save return err. Pass nil to recover.
func (b *Backing) FailSaves(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSave = err
}
