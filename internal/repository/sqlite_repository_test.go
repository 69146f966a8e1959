package repository

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteRepository {
	// Use in-memory database for tests
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func writeRaw(t *testing.T, r *SQLiteRepository, key, payload string) {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO cart_snapshots (storage_key, payload) VALUES (?, ?)`, key, payload)
	require.NoError(t, err)
}

func sampleItems() []domain.LineItem {
	return []domain.LineItem{
		{ProductID: "p1", Name: "Mug", UnitPrice: 5000, Currency: "mxn", Quantity: 2},
		{ProductID: "p2", Name: "Shirt", UnitPrice: 12000, Currency: "mxn", Quantity: 1,
			Variant: &domain.SelectedVariant{ID: "v-m", Name: "M"}},
	}
}

func TestSQLiteLoadSnapshot_NotFound(t *testing.T) {
	repo := setupSQLite(t)

	items, err := repo.LoadSnapshot(context.Background(), "metritrak_cart")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Nil(t, items)
}

func TestSQLiteSnapshot_RoundTrip(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, "metritrak_cart", sampleItems()))

	items, err := repo.LoadSnapshot(ctx, "metritrak_cart")
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)
}

func TestSQLiteSaveSnapshot_Overwrites(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, "k", sampleItems()))
	require.NoError(t, repo.SaveSnapshot(ctx, "k", sampleItems()[:1]))

	items, err := repo.LoadSnapshot(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteSaveSnapshot_NilItemsStoredAsEmptyArray(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, "k", nil))

	items, err := repo.LoadSnapshot(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteLoadSnapshot_Corrupt(t *testing.T) {
	repo := setupSQLite(t)
	writeRaw(t, repo, "k", `{"not":"an array"`)

	_, err := repo.LoadSnapshot(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestSQLiteDeleteSnapshot(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, "k", sampleItems()))
	require.NoError(t, repo.DeleteSnapshot(ctx, "k"))
	// deleting a missing key should not error
	require.NoError(t, repo.DeleteSnapshot(ctx, "k"))

	_, err := repo.LoadSnapshot(ctx, "k")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSQLiteRunMigrations_Idempotent(t *testing.T) {
	repo := setupSQLite(t)
	assert.NoError(t, repo.RunMigrations())
}
