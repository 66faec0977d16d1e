// Package bolt keeps collection snapshots in a single BoltDB bucket keyed by
// collection name.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
)

const snapshotBucket = "snapshots"

// Backing is a BoltDB-backed snapshot store.
type Backing struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Backing, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	b := &Backing{db: db}
	if err := b.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backing) ensureBucket() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket)); err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		return nil
	})
}

// Load returns a copy of the stored payload.
func (b *Backing) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		data := bucket.Get([]byte(collection))
		if data == nil {
			return backing.ErrNotFound
		}
		// data is only valid for the life of the transaction.
		payload = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Save writes the payload under the collection key.
func (b *Backing) Save(ctx context.Context, collection string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		return bucket.Put([]byte(collection), payload)
	})
}

// Close closes the database file.
func (b *Backing) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
