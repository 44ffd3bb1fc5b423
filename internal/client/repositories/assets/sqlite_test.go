package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/repotest"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, recordIDs ...string) *SQLiteRepository {
	t.Helper()
	db := repotest.OpenDB(t)
	recs := records.NewSQLiteRepository(db)
	for _, id := range recordIDs {
		require.NoError(t, recs.Put(context.Background(), &models.Record{ID: id, Title: id}))
	}
	return NewSQLiteRepository(db)
}

func asset(id, recordID string, size int64) *models.Asset {
	return &models.Asset{
		ID:       id,
		RecordID: recordID,
		FileName: id + ".jpg",
		MimeType: "image/jpeg",
		Data:     models.EncodeDataURL("image/jpeg", []byte(id)),
		Size:     size,
	}
}

func TestPut_AndGet(t *testing.T) {
	r := setup(t, "rec")
	ctx := context.Background()

	a := asset("a1", "rec", 10)
	a.Checksum = "blake2b-256:00"
	require.NoError(t, r.Put(ctx, a))

	got, err := r.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AssetPending, got.Status)
	assert.Equal(t, a.Data, got.Data)
	assert.Equal(t, int64(10), got.Size)
	assert.Equal(t, "blake2b-256:00", got.Checksum)

	_, err = r.Get(ctx, "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestPut_RejectsOrphan(t *testing.T) {
	r := setup(t)

	err := r.Put(context.Background(), asset("a1", "no-such-record", 1))
	require.Error(t, err)
}

func TestListUploadable_RespectsStatusAndRetries(t *testing.T) {
	r := setup(t, "rec")
	ctx := context.Background()

	fresh := asset("fresh", "rec", 1)
	interrupted := asset("interrupted", "rec", 1)
	interrupted.Status = models.AssetUploading
	retrying := asset("retrying", "rec", 1)
	retrying.RetryCount = 2
	exhausted := asset("exhausted", "rec", 1)
	exhausted.Status = models.AssetError
	exhausted.RetryCount = common.MaxRetries
	done := asset("done", "rec", 1)
	done.Status = models.AssetSynced

	for _, a := range []*models.Asset{fresh, interrupted, retrying, exhausted, done} {
		require.NoError(t, r.Put(ctx, a))
	}

	list, err := r.ListUploadable(ctx, common.MaxRetries)
	require.NoError(t, err)

	var ids []string
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"fresh", "interrupted", "retrying"}, ids)
}

func TestSaveState_AndResetFailed(t *testing.T) {
	r := setup(t, "rec")
	ctx := context.Background()

	a := asset("a1", "rec", 1)
	b := asset("b1", "rec", 1)
	require.NoError(t, r.Put(ctx, a))
	require.NoError(t, r.Put(ctx, b))

	a.Status, a.RetryCount, a.LastError = models.AssetError, 3, "timeout"
	require.NoError(t, r.SaveState(ctx, a))
	b.Status, b.RetryCount, b.LastError = models.AssetError, 3, "timeout"
	require.NoError(t, r.SaveState(ctx, b))

	n, err := r.ResetFailed(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AssetPending, got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.LastError)

	n, err = r.ResetFailed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = r.SaveState(ctx, &models.Asset{ID: "ghost", Status: models.AssetSynced})
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestTotalSize_CountAndDelete(t *testing.T) {
	r := setup(t, "rec1", "rec2")
	ctx := context.Background()

	total, err := r.TotalSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, r.Put(ctx, asset("a", "rec1", 100)))
	require.NoError(t, r.Put(ctx, asset("b", "rec1", 50)))
	c := asset("c", "rec2", 25)
	c.Status = models.AssetSynced
	require.NoError(t, r.Put(ctx, c))

	total, err = r.TotalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(175), total)

	counts, err := r.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.AssetPending])
	assert.Equal(t, 1, counts[models.AssetSynced])

	byRecord, err := r.ListByRecord(ctx, "rec1")
	require.NoError(t, err)
	assert.Len(t, byRecord, 2)

	n, err := r.DeleteByRecord(ctx, "rec1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, r.Delete(ctx, "c"))
	assert.True(t, errors.Is(r.Delete(ctx, "c"), common.ErrorNotFound))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
