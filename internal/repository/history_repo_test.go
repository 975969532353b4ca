package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"milestonez/internal/model"
	"milestonez/pkg/config"
	"milestonez/pkg/db"
)

func newSQLiteStore(t *testing.T) HistoryStore {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	conn, err := db.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")}, log)
	require.NoError(t, err)

	store := NewSQLiteHistoryRepository(conn, log)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newPostgresStore(t *testing.T) HistoryStore {
	t.Helper()
	dsn := os.Getenv("MILESTONEZ_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MILESTONEZ_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS history`)
	require.NoError(t, err)

	store := NewPostgresHistoryRepository(pool, zaptest.NewLogger(t))
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func eachStore(t *testing.T, fn func(t *testing.T, store HistoryStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newPostgresStore(t)) })
}

func TestHistoryStore_GetBeforePut(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		_, err := store.Get(context.Background(), "u1", "p1")
		assert.ErrorIs(t, err, ErrHistoryNotFound)
	})
}

func TestHistoryStore_LastWriteWins(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("v1", "u1", "p1")))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("v2", "u1", "p1")))

		rec, err := store.Get(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1xu1", rec.ID)
		assert.Equal(t, "v2", rec.History)

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestHistoryStore_ListAllOrderAndIsolation(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("a", "u1", "p1")))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("b", "u2", "p1")))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("c", "u1", "p2")))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)

		ids := []string{all[0].ID, all[1].ID, all[2].ID}
		assert.Equal(t, []string{"p1xu1", "p1xu2", "p2xu1"}, ids)

		rec, err := store.Get(ctx, "u2", "p1")
		require.NoError(t, err)
		assert.Equal(t, "b", rec.History)
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestHistoryStore_ReplaceMovesToEnd(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("a", "u1", "p1")))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("b", "u2", "p1")))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("a2", "u1", "p1")))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "p1xu2", all[0].ID)
		assert.Equal(t, "p1xu1", all[1].ID)
		assert.Equal(t, "a2", all[1].History)
	})
}

func TestHistoryStore_GetMatchesPairNotID(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		ctx := context.Background()

		// ("xb", "a") and ("b", "ax") share the id "axxb"
		require.Equal(t, model.HistoryID("xb", "a"), model.HistoryID("b", "ax"))
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("plan of xb", "xb", "a")))

		_, err := store.Get(ctx, "b", "ax")
		assert.ErrorIs(t, err, ErrHistoryNotFound)

		rec, err := store.Get(ctx, "xb", "a")
		require.NoError(t, err)
		assert.Equal(t, "plan of xb", rec.History)

		// the later pair displaces the row; the earlier pair no longer resolves
		require.NoError(t, store.Put(ctx, model.NewHistoryRecord("plan of b", "b", "ax")))
		_, err = store.Get(ctx, "xb", "a")
		assert.ErrorIs(t, err, ErrHistoryNotFound)

		rec, err = store.Get(ctx, "b", "ax")
		require.NoError(t, err)
		assert.Equal(t, "b", rec.UserID)
		assert.Equal(t, "plan of b", rec.History)
	})
}

func TestHistoryStore_ListAllEmpty(t *testing.T) {
	eachStore(t, func(t *testing.T, store HistoryStore) {
		all, err := store.ListAll(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})
}

func TestSQLiteHistory_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	conn, err := db.NewSQLite(ctx, config.SQLiteConfig{Path: path}, log)
	require.NoError(t, err)
	store := NewSQLiteHistoryRepository(conn, log)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Put(ctx, model.NewHistoryRecord("kept", "u", "p")))
	require.NoError(t, store.Close())

	conn, err = db.NewSQLite(ctx, config.SQLiteConfig{Path: path}, log)
	require.NoError(t, err)
	store = NewSQLiteHistoryRepository(conn, log)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	rec, err := store.Get(ctx, "u", "p")
	require.NoError(t, err)
	assert.Equal(t, "kept", rec.History)
}
