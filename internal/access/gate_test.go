package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autorename/autorename/internal/database"
)

type brokenRoster struct{}

func (brokenRoster) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return false, &database.StorageError{Op: "is_admin", Err: errors.New("timeout")}
}

func TestGate_IsAuthorized(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	g := NewGate(100, store, store)

	ok, err := g.IsAuthorized(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok, "owner is authorized with an empty roster")

	ok, err = g.IsAuthorized(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AddAdmin(ctx, 7))
	ok, err = g.IsAuthorized(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.RemoveAdmin(ctx, 7)
	require.NoError(t, err)
	ok, err = g.IsAuthorized(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_OwnerSkipsRosterLookup(t *testing.T) {
	g := NewGate(1, brokenRoster{}, database.NewMemoryStore())

	ok, err := g.IsAuthorized(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.IsAuthorized(context.Background(), 2)
	assert.ErrorIs(t, err, database.ErrStorageUnavailable)
}

func TestGate_IsBanned(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	g := NewGate(1, store, store)

	banned, err := g.IsBanned(ctx, 5)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, store.SetBanned(ctx, 5, true))
	banned, err = g.IsBanned(ctx, 5)
	require.NoError(t, err)
	assert.True(t, banned)

	assert.True(t, g.IsOwner(1))
	assert.Equal(t, int64(1), g.OwnerID())
}
