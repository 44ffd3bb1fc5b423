package syncer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var queuedKinds = []models.ChangeKind{models.KindComment, models.KindSavedReference}

// GetPendingCount counts items a run would still work on. Records confirmed
// but not yet cleaned up count as pending.
func (o *Orchestrator) GetPendingCount(ctx context.Context) (models.PendingCount, error) {
	st, err := o.GetSyncStatus(ctx)
	if err != nil {
		return models.PendingCount{}, err
	}
	pc := models.PendingCount{
		Records: st.PendingRecords,
		Assets:  st.PendingAssets,
		Changes: st.PendingChanges,
	}
	pc.Total = pc.Records + pc.Assets + pc.Changes
	return pc, nil
}

func (o *Orchestrator) GetSyncStatus(ctx context.Context) (models.SyncStatus, error) {
	repos := o.store.Repositories()

	recs, err := repos.Records.CountByStatus(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	assets, err := repos.Assets.CountByStatus(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	changes, err := repos.Changes.CountByStatus(ctx, queuedKinds...)
	if err != nil {
		return models.SyncStatus{}, err
	}

	st := models.SyncStatus{
		PendingRecords: recs[models.RecordPending] + recs[models.RecordSynced],
		FailedRecords:  recs[models.RecordError],
		PendingAssets:  assets[models.AssetPending] + assets[models.AssetUploading],
		FailedAssets:   assets[models.AssetError],
		PendingChanges: changes[models.ChangePending],
		FailedChanges:  changes[models.ChangeError],
		Stage:          models.StageIdle,
	}
	st.HasPending = st.PendingRecords+st.PendingAssets+st.PendingChanges > 0

	if t, err := metadata.GetTime(ctx, repos.Metadata, metadata.KeyLastSyncAt); err == nil {
		st.LastSyncAt = t
	}
	if v, err := repos.Metadata.Get(ctx, metadata.KeyStage); err == nil && len(v) > 0 {
		st.Stage = models.Stage(v)
	}
	return st, nil
}

// RetryFailed moves every item parked in the error state back to pending
// with a fresh retry budget. It returns the number of items reset.
func (o *Orchestrator) RetryFailed(ctx context.Context) (int64, error) {
	return o.reset(ctx, "")
}

// RetryItem resets a single asset, record or queued change by id.
func (o *Orchestrator) RetryItem(ctx context.Context, id string) error {
	n, err := o.reset(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no failed item %s: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (o *Orchestrator) reset(ctx context.Context, id string) (int64, error) {
	var total int64
	err := o.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		n, err := repos.Assets.ResetFailed(ctx, id)
		if err != nil {
			return err
		}
		total += n

		// record retry state lives on its queue entry, matched by entity id,
		// so a failed record is counted once through its change
		n, err = repos.Changes.ResetFailed(ctx, id)
		if err != nil {
			return err
		}
		total += n

		failed, err := repos.Records.ListByStatus(ctx, models.RecordError)
		if err != nil {
			return err
		}
		for _, rec := range failed {
			if id != "" && rec.ID != id {
				continue
			}
			if err := repos.Records.SetState(ctx, rec.ID, models.RecordPending, "", ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		o.log.Info(ctx, "failed items reset", "id", id, "count", total)
	}
	return total, nil
}
