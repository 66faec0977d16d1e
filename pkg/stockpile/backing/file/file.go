// Package file stores collection snapshots as JSON files in a data directory,
// one file per collection.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
)

// Backing writes <dir>/<collection>.json.
type Backing struct {
	dir string
}

// New creates a file backing rooted at dir. The directory is created on first save.
func New(dir string) (*Backing, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	return &Backing{dir: filepath.Clean(dir)}, nil
}

func (b *Backing) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

// Load reads the collection file.
func (b *Backing) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, backing.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, nil
}

// Save replaces the collection file. The payload is written to a temporary
// file in the same directory and renamed over the target.
func (b *Backing) Save(ctx context.Context, collection string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, b.path(collection)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", collection, err)
	}
	return nil
}

// Close is a no-op.
func (b *Backing) Close() error { return nil }
