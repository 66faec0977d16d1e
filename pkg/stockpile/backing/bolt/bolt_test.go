package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockpile.db")
	b, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Load(ctx, "warehouses")
	assert.ErrorIs(t, err, backing.ErrNotFound)

	require.NoError(t, b.Save(ctx, "warehouses", []byte(`[{"id":"w1"}]`)))
	require.NoError(t, b.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "warehouses")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"w1"}]`, string(got))
}

func TestSaveCanceledContext(t *testing.T) {
	b, err := Open(filepath.Join(t.TempDir(), "stockpile.db"))
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Save(ctx, "users", []byte(`[]`)), context.Canceled)
}
