package marker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "terminal", "marker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx)
			require.ErrorIs(t, err, ErrNoMarker)

			created := time.UnixMilli(1700000000123)
			require.NoError(t, s.Set(ctx, Marker{OrderID: "o-1", CreatedAt: created}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "o-1", got.OrderID)
			assert.True(t, got.CreatedAt.Equal(created))

			// A second Set replaces; there is only ever one marker.
			require.NoError(t, s.Set(ctx, Marker{OrderID: "o-2", CreatedAt: created}))
			got, err = s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "o-2", got.OrderID)

			require.NoError(t, s.Clear(ctx))
			_, err = s.Get(ctx)
			require.ErrorIs(t, err, ErrNoMarker)
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "marker.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, Marker{OrderID: "o-7", CreatedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o-7", got.OrderID)
}

func TestClearIf(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cleared, err := ClearIf(ctx, s, "o-1")
	require.NoError(t, err)
	assert.False(t, cleared)

	require.NoError(t, s.Set(ctx, Marker{OrderID: "o-1"}))

	cleared, err = ClearIf(ctx, s, "o-other")
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = ClearIf(ctx, s, "o-1")
	require.NoError(t, err)
	assert.True(t, cleared)

	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, ErrNoMarker)
}
