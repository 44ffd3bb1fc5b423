package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/google/uuid"
)

type readyRecord struct {
	record *models.Record
	change *models.PendingChange
	assets []*models.Asset
}

func (o *Orchestrator) syncRecords(ctx context.Context, res *models.RunResult) error {
	o.setStage(ctx, models.StageCases)

	ready, err := o.readyRecords(ctx)
	if err != nil {
		return err
	}

	for i, rr := range ready {
		serverID, subErr := o.submitRecord(ctx, rr)
		settled := false
		if subErr == nil {
			var err error
			if settled, err = o.confirm(ctx, rr, serverID); err != nil {
				return err
			}
			if settled {
				res.SyncedCases++
			} else {
				o.log.Info(ctx, "record changed while it was submitted, sending again next run", "record", rr.record.ID, "server_id", serverID)
			}
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("case %s: %v", rr.record.Title, subErr))
			o.log.Warn(ctx, "record submission failed", "record", rr.record.ID, "error", subErr)
			if err := o.recordFailure(ctx, rr, subErr); err != nil {
				return err
			}
		}

		p := models.Progress{Stage: models.StageCases, CurrentItem: i + 1, TotalItems: len(ready), CurrentItemName: rr.record.Title}
		if subErr != nil {
			p.Error = subErr.Error()
		}
		o.emit(p)

		if settled {
			if err := o.cleanup(ctx, rr.record.ID, serverID); err != nil {
				// the record stays synced and is picked up by the next recovery pass
				res.Errors = append(res.Errors, fmt.Sprintf("cleanup %s: %v", rr.record.Title, err))
				o.log.Error(ctx, "cleanup failed", "record", rr.record.ID, "error", err)
			}
		}
	}
	return nil
}

// confirm marks the record synced when the local copy still matches what was
// submitted. If the record was edited, got another attachment or lost one in
// the meantime, it keeps the server id and stays pending, so the next run sends
// the current version under the same local id.
func (o *Orchestrator) confirm(ctx context.Context, rr readyRecord, serverID string) (bool, error) {
	var settled bool
	err := o.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		current, err := repos.Records.Get(ctx, rr.record.ID)
		if errors.Is(err, common.ErrorNotFound) {
			// discarded by the user during the submission
			return nil
		}
		if err != nil {
			return err
		}

		assets, err := repos.Assets.ListByRecord(ctx, rr.record.ID)
		if err != nil {
			return fmt.Errorf("list assets of %s: %w", rr.record.ID, err)
		}

		if changedSince(rr, current, assets) {
			return repos.Records.SetState(ctx, current.ID, models.RecordPending, "", serverID)
		}
		settled = true
		return repos.Records.SetState(ctx, current.ID, models.RecordSynced, "", serverID)
	})
	return settled, err
}

func changedSince(rr readyRecord, current *models.Record, assets []*models.Asset) bool {
	if current.Title != rr.record.Title ||
		!bytes.Equal(current.Payload, rr.record.Payload) ||
		!current.UpdatedAt.Equal(rr.record.UpdatedAt) {
		return true
	}
	if len(assets) != len(rr.assets) {
		return true
	}

	sent := make(map[string]bool, len(rr.assets))
	for _, a := range rr.assets {
		sent[a.ID] = true
	}
	for _, a := range assets {
		if !sent[a.ID] || a.Status != models.AssetSynced {
			return true
		}
	}
	return false
}

// readyRecords returns pending records whose attachments are all uploaded.
func (o *Orchestrator) readyRecords(ctx context.Context) ([]readyRecord, error) {
	repos := o.store.Repositories()

	pending, err := repos.Records.ListByStatus(ctx, models.RecordPending)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	var ready []readyRecord
	for _, rec := range pending {
		change, err := o.recordChange(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if change.Status == models.ChangeError || change.RetryCount >= common.MaxRetries {
			continue
		}

		assets, err := repos.Assets.ListByRecord(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("list assets of %s: %w", rec.ID, err)
		}
		if !allSynced(assets) {
			o.log.Debug(ctx, "record waits for its assets", "record", rec.ID)
			continue
		}
		ready = append(ready, readyRecord{record: rec, change: change, assets: assets})
	}
	return ready, nil
}

// recordChange returns the queue entry carrying the record's retry state,
// creating it for records stored without one.
func (o *Orchestrator) recordChange(ctx context.Context, recordID string) (*models.PendingChange, error) {
	repo := o.store.Repositories().Changes
	c, err := repo.FindByEntity(ctx, models.KindRecord, recordID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	c = &models.PendingChange{
		ID:        uuid.NewString(),
		Kind:      models.KindRecord,
		Operation: models.OpCreate,
		EntityID:  recordID,
	}
	if err := repo.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func allSynced(assets []*models.Asset) bool {
	for _, a := range assets {
		if a.Status != models.AssetSynced {
			return false
		}
	}
	return true
}

func (o *Orchestrator) submitRecord(ctx context.Context, rr readyRecord) (string, error) {
	payload, attachments, err := substituteAssets(rr.record, rr.assets)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}

	id, err := o.remote.SubmitRecord(ctx, remote.Submission{
		LocalID:     rr.record.ID,
		Title:       rr.record.Title,
		Payload:     payload,
		Attachments: attachments,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrRecordSyncFailure, err)
	}
	return id, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, rr readyRecord, cause error) error {
	return o.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		var parked bool
		rr.change.RetryCount, parked = nextAttempt(rr.change.RetryCount)
		rr.change.LastError = cause.Error()

		status := models.RecordPending
		rr.change.Status = models.ChangePending
		if parked {
			status = models.RecordError
			rr.change.Status = models.ChangeError
		}

		if err := repos.Changes.SaveState(ctx, rr.change); err != nil {
			return err
		}
		return repos.Records.SetState(ctx, rr.record.ID, status, cause.Error(), rr.record.ServerID)
	})
}

// substituteAssets replaces every string in the record payload equal to a
// local asset id with that asset's remote URL, and lists the URLs in
// attachment order.
func substituteAssets(rec *models.Record, assets []*models.Asset) (json.RawMessage, []string, error) {
	fields, err := rec.Fields()
	if err != nil {
		return nil, nil, err
	}

	urls := make(map[string]string, len(assets))
	attachments := make([]string, 0, len(assets))
	for _, a := range assets {
		urls[a.ID] = a.RemoteURL
		attachments = append(attachments, a.RemoteURL)
	}

	b, err := json.Marshal(replaceRefs(fields, urls))
	if err != nil {
		return nil, nil, err
	}
	return b, attachments, nil
}

func replaceRefs(v any, urls map[string]string) any {
	switch t := v.(type) {
	case string:
		if u, ok := urls[t]; ok {
			return u
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = replaceRefs(val, urls)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = replaceRefs(val, urls)
		}
		return t
	default:
		return v
	}
}
