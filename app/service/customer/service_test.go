package customer

import (
	"context"
	"meetassist/app/client/boltdb"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *boltdb.Store {
	t.Helper()

	store, err := boltdb.Open(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Shutdown() })

	return store
}

func TestLookup(t *testing.T) {
	svc := NewService(newStore(t), 0)

	require.NoError(t, svc.Seed(map[string][]string{
		"+1 (555) 123-4567": {"Premium plan since 2021", "Open ticket about billing"},
	}))

	docs, err := svc.Lookup(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, []string{"Premium plan since 2021", "Open ticket about billing"}, docs)

	docs, err = svc.Lookup(context.Background(), "+10000000000")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)

	docs, err = svc.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLookupHonorsContext(t *testing.T) {
	svc := NewService(newStore(t), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, "+15551234567")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "+15551234567", normalize(" +1 (555) 123-4567 "))
	assert.Equal(t, "5551234567", normalize("555+123+4567"))
	assert.Equal(t, "", normalize("n/a"))
}
