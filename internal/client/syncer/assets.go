package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
)

var errChecksumMismatch = errors.New("checksum mismatch")

func (o *Orchestrator) syncAssets(ctx context.Context, res *models.RunResult) error {
	o.setStage(ctx, models.StageImages)
	repo := o.store.Repositories().Assets

	queue, err := repo.ListUploadable(ctx, common.MaxRetries)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}

	for i, a := range queue {
		a.Status = models.AssetUploading
		if err := repo.SaveState(ctx, a); err != nil {
			return err
		}

		url, upErr := o.uploadAsset(ctx, a)
		if upErr == nil {
			a.Status = models.AssetSynced
			a.RemoteURL = url
			a.RetryCount = 0
			a.LastError = ""
			res.SyncedImages++
		} else {
			var parked bool
			a.RetryCount, parked = nextAttempt(a.RetryCount)
			a.LastError = upErr.Error()
			a.Status = models.AssetPending
			if parked {
				a.Status = models.AssetError
			}
			res.Errors = append(res.Errors, fmt.Sprintf("image %s: %v", a.FileName, upErr))
			o.log.Warn(ctx, "asset upload failed", "asset", a.ID, "attempt", a.RetryCount, "error", upErr)
		}

		if err := repo.SaveState(ctx, a); err != nil {
			return err
		}

		p := models.Progress{Stage: models.StageImages, CurrentItem: i + 1, TotalItems: len(queue), CurrentItemName: a.FileName}
		if upErr != nil {
			p.Error = upErr.Error()
		}
		o.emit(p)
	}
	return nil
}

func (o *Orchestrator) uploadAsset(ctx context.Context, a *models.Asset) (string, error) {
	_, data, err := models.DecodeDataURL(a.Data)
	if err != nil {
		return "", err
	}
	if a.Checksum != "" && !cryptox.Verify(data, a.Checksum) {
		return "", errChecksumMismatch
	}

	url, err := o.remote.UploadAsset(ctx, data, remote.AssetMeta{
		AssetID:  a.ID,
		RecordID: a.RecordID,
		FileName: a.FileName,
		MimeType: a.MimeType,
		Size:     int64(len(data)),
		Checksum: a.Checksum,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUploadFailure, err)
	}
	return url, nil
}
