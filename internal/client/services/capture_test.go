package services

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (CaptureService, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.DSN(filepath.Join(t.TempDir(), "capture.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewCaptureService(st, nil), st
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCreateRecord_QueuesCreate(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "Leak at site 4", map[string]any{"severity": "high"})
	require.NoError(t, err)
	assert.True(t, models.IsLocalID(rec.ID))
	assert.Equal(t, models.RecordPending, rec.Status)

	got, err := svc.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"severity":"high"}`, string(got.Payload))

	c, err := st.Repositories().Changes.FindByEntity(ctx, models.KindRecord, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, c.Operation)
	assert.JSONEq(t, `{"severity":"high"}`, string(c.Payload))
}

func TestCreateRecord_RequiresTitle(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateRecord(context.Background(), "", nil)
	assert.ErrorIs(t, err, common.ErrInvalidRecord)

	list, err := svc.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateRecord_CoalescesIntoQueuedCreate(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "draft", map[string]any{"v": 1})
	require.NoError(t, err)

	_, err = svc.UpdateRecord(ctx, rec.ID, "draft v2", map[string]any{"v": 2})
	require.NoError(t, err)

	queued, err := st.Repositories().Changes.List(ctx, models.KindRecord)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.OpCreate, queued[0].Operation)
	assert.JSONEq(t, `{"v":2}`, string(queued[0].Payload))

	got, err := svc.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft v2", got.Title)
}

func TestUpdateRecord_KeepsErrorState(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "failing", nil)
	require.NoError(t, err)
	require.NoError(t, st.Repositories().Records.SetState(ctx, rec.ID, models.RecordError, "boom", ""))

	got, err := svc.UpdateRecord(ctx, rec.ID, "failing, edited", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RecordError, got.Status)
}

func TestUpdateRecord_RejectsAcceptedAndMissing(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "sent", nil)
	require.NoError(t, err)
	require.NoError(t, st.Repositories().Records.SetState(ctx, rec.ID, models.RecordSynced, "", "srv-1"))

	_, err = svc.UpdateRecord(ctx, rec.ID, "too late", nil)
	assert.ErrorIs(t, err, common.ErrInvalidRecord)

	_, err = svc.UpdateRecord(ctx, "offline_1_missing", "x", nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAttachAsset_ImageGetsThumbnailAndChecksum(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "with photo", nil)
	require.NoError(t, err)

	data := pngBytes(t, 640, 320)
	a, err := svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "photo.png", Data: data})
	require.NoError(t, err)

	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, int64(len(data)), a.Size)
	assert.Equal(t, cryptox.Checksum(data), a.Checksum)
	assert.Equal(t, models.AssetPending, a.Status)

	_, decoded, err := models.DecodeDataURL(a.Data)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	thumbMime, thumb, err := models.DecodeDataURL(a.Thumbnail)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", thumbMime)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)

	usage, err := st.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), usage)
}

func TestAttachAsset_DocumentHasNoThumbnail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "with pdf", nil)
	require.NoError(t, err)

	a, err := svc.AttachAsset(ctx, rec.ID, AssetInput{
		FileName: "report.pdf",
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.4 minimal"),
	})
	require.NoError(t, err)
	assert.Empty(t, a.Thumbnail)

	list, err := svc.ListAssets(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestAttachAsset_Rejections(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "target", nil)
	require.NoError(t, err)

	_, err = svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "run.sh", MimeType: "text/x-shellscript", Data: []byte("#!/bin/sh")})
	assert.ErrorIs(t, err, common.ErrUnsupportedType)

	big := make([]byte, common.MaxAssetSize+1)
	_, err = svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "big.pdf", MimeType: "application/pdf", Data: big})
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)

	_, err = svc.AttachAsset(ctx, "offline_1_nowhere", AssetInput{FileName: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "", MimeType: "application/pdf", Data: []byte("%PDF")})
	assert.ErrorIs(t, err, common.ErrInvalidRecord)

	usage, err := st.Usage(ctx)
	require.NoError(t, err)
	assert.Zero(t, usage)
}

func TestAttachAsset_AggregateQuota(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "full", nil)
	require.NoError(t, err)

	chunk := make([]byte, common.MaxAssetSize)
	copy(chunk, "%PDF-1.4")
	for i := 0; i < int(common.MaxTotalStorage/common.MaxAssetSize); i++ {
		_, err := svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "part.pdf", MimeType: "application/pdf", Data: chunk})
		require.NoError(t, err)
	}

	_, err = svc.AttachAsset(ctx, rec.ID, AssetInput{FileName: "one-more.pdf", MimeType: "application/pdf", Data: []byte("%")})
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
}

func TestCreateRecordWithAssets_AllOrNothing(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	ok := AssetInput{FileName: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF-a")}
	bad := AssetInput{FileName: "b.exe", MimeType: "application/x-msdownload", Data: []byte("MZ")}

	_, _, err := svc.CreateRecordWithAssets(ctx, "mixed", nil, []AssetInput{ok, bad})
	assert.ErrorIs(t, err, common.ErrUnsupportedType)

	recs, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	rec, assets, err := svc.CreateRecordWithAssets(ctx, "clean", map[string]any{"k": "v"}, []AssetInput{ok, ok})
	require.NoError(t, err)
	require.Len(t, assets, 2)
	for _, a := range assets {
		assert.Equal(t, rec.ID, a.RecordID)
	}

	all, err := st.Repositories().Assets.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDiscardRecord_PurgesEverything(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, _, err := svc.CreateRecordWithAssets(ctx, "discard me", nil,
		[]AssetInput{{FileName: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, rec.ID, "note on draft")
	require.NoError(t, err)

	require.NoError(t, svc.DiscardRecord(ctx, rec.ID))

	_, err = svc.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assets, err := st.Repositories().Assets.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
	queued, err := st.Repositories().Changes.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)

	assert.ErrorIs(t, svc.DiscardRecord(ctx, rec.ID), common.ErrorNotFound)
}

func TestDiscardAsset(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, assets, err := svc.CreateRecordWithAssets(ctx, "r", nil,
		[]AssetInput{{FileName: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}})
	require.NoError(t, err)

	require.NoError(t, svc.DiscardAsset(ctx, assets[0].ID))
	left, err := svc.ListAssets(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	usage, err := st.Usage(ctx)
	require.NoError(t, err)
	assert.Zero(t, usage)
}

func TestAddComment_Targets(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "draft", nil)
	require.NoError(t, err)

	c, err := svc.AddComment(ctx, rec.ID, "on the draft")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, c.ParentID)
	assert.Equal(t, models.KindComment, c.Kind)

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.Payload, &body))
	assert.Equal(t, "on the draft", body["text"])

	c, err = svc.AddComment(ctx, "srv-42", "on a server record")
	require.NoError(t, err)
	assert.Equal(t, "srv-42", c.ParentID)

	// accepted draft resolves to its server id
	require.NoError(t, st.Repositories().IDMap.Put(ctx, "offline_1_gone", "srv-7"))
	c, err = svc.AddComment(ctx, "offline_1_gone", "after sync")
	require.NoError(t, err)
	assert.Equal(t, "srv-7", c.ParentID)

	_, err = svc.AddComment(ctx, "offline_1_unknown", "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.AddComment(ctx, rec.ID, "")
	assert.ErrorIs(t, err, common.ErrInvalidRecord)
}

func TestSavedReferences_Coalesce(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	saved, err := svc.SaveReference(ctx, "srv-1", "check later")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, models.OpCreate, saved.Operation)

	again, err := svc.SaveReference(ctx, "srv-1", "updated note")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)

	queued, err := st.Repositories().Changes.List(ctx, models.KindSavedReference)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Contains(t, string(queued[0].Payload), "updated note")

	removed, err := svc.DeleteReference(ctx, "srv-1")
	require.NoError(t, err)
	assert.Nil(t, removed)

	queued, err = st.Repositories().Changes.List(ctx, models.KindSavedReference)
	require.NoError(t, err)
	assert.Empty(t, queued)

	del, err := svc.DeleteReference(ctx, "srv-2")
	require.NoError(t, err)
	require.NotNil(t, del)
	assert.Equal(t, models.OpDelete, del.Operation)
	assert.Equal(t, "srv-2", del.ParentID)

	_, err = svc.SaveReference(ctx, "", "x")
	assert.ErrorIs(t, err, common.ErrInvalidRecord)
}
