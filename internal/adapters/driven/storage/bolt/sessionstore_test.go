package bolt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func setupTestStore(t *testing.T) (*SessionStore, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := NewSessionStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestSessionStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	defer store.Close()

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "What was Apple's revenue?"},
		{Role: domain.RoleAssistant, Content: "$394.3 billion in fiscal 2022."},
	}
	require.NoError(t, store.Save(ctx, "research", turns))

	got, err := store.Load(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, turns, got)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	store, _ := setupTestStore(t)
	defer store.Close()

	got, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "s", []domain.Turn{{Role: domain.RoleUser, Content: "one"}}))
	require.NoError(t, store.Save(ctx, "s", []domain.Turn{{Role: domain.RoleUser, Content: "two"}}))

	got, err := store.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Content)
}

func TestSessionStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	defer store.Close()

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save(ctx, "beta", nil))
	require.NoError(t, store.Save(ctx, "alpha", nil))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, store.Delete(ctx, "alpha"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)
}

func TestSessionStore_RequiresName(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	defer store.Close()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(ctx, "", nil), domain.ErrInvalidInput)
}

func TestSessionStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, dir := setupTestStore(t)
	require.NoError(t, store.Save(ctx, "s", []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}))
	require.NoError(t, store.Close())

	reopened, err := NewSessionStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
}
