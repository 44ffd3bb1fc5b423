package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	return repotest.OpenDB(t)
}

func TestStage_SetThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyStage, []byte("images")))
	require.NoError(t, r.Set(ctx, KeyStage, []byte("idle")))

	v, err := r.Get(ctx, KeyStage)
	require.NoError(t, err)
	assert.Equal(t, "idle", string(v))
}

func TestLastSyncAt_RoundTripsInUTC(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	riga := time.FixedZone("EET", 2*60*60)
	at := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, riga)
	require.NoError(t, SetTime(ctx, r, KeyLastSyncAt, at))

	raw, err := r.Get(ctx, KeyLastSyncAt)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T07:26:53.589Z", string(raw))

	got, err := GetTime(ctx, r, KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestLastSyncAt_NeverSyncedIsZero(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	got, err := GetTime(context.Background(), r, KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestLastSyncAt_GarbageIsReported(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyLastSyncAt, []byte("yesterday")))

	_, err := GetTime(ctx, r, KeyLastSyncAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata[last_sync_at]")
}

func TestLastSyncAt_ClosedDB(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	_, err := GetTime(context.Background(), r, KeyLastSyncAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get metadata[last_sync_at]")
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	v, err := r.Get(ctx, "absent")
	require.NoError(t, err)
	require.Nil(t, v) // (nil, nil) when the row is absent
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new"))) // upsert

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestList_ReturnsOrchestratorKeys(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyStage, []byte("cases")))
	require.NoError(t, SetTime(ctx, r, KeyLastSyncAt, time.Unix(0, 0)))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, "cases", string(m[KeyStage]))
	assert.Equal(t, "1970-01-01T00:00:00Z", string(m[KeyLastSyncAt]))
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
	require.NoError(t, r.Delete(ctx, "x"))

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, v)

	// deleting twice is fine
	require.NoError(t, r.Delete(ctx, "x"))
}

func TestClear_RemovesAllKeys(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{1}))
	require.NoError(t, r.Set(ctx, "b", []byte{2}))
	require.NoError(t, r.Clear(ctx))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

// nullable value column so a NULL can be stored
func setupDBNullable(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)
	return db
}

func TestGet_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	// closed DB forces a driver error
	require.NoError(t, db.Close())

	v, err := r.Get(ctx, "k")
	require.Error(t, err)
	require.Nil(t, v)
	require.Contains(t, err.Error(), "failed to get metadata[k]")
}

func TestSet_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	err := r.Set(ctx, "k", []byte("v"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to set metadata[k]")
}

func TestDelete_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	err := r.Delete(ctx, "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to delete metadata[k]")
}

func TestClear_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	err := r.Clear(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to clear metadata")
}

func TestList_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.List(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to list metadata")
}

func TestList_NullValueIsReturnedAsNil(t *testing.T) {
	db := setupDBNullable(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('bad', NULL);`)
	require.NoError(t, err)

	m, err := r.List(ctx)
	require.NoError(t, err)
	v, ok := m["bad"]
	require.True(t, ok)
	require.Nil(t, v)
}
