package syncer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
)

// cleanup replaces the local id with the server id and purges the record,
// its assets and its queue entry, all in one transaction.
func (o *Orchestrator) cleanup(ctx context.Context, localID, serverID string) error {
	return o.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		if err := repos.IDMap.Put(ctx, localID, serverID); err != nil {
			return err
		}
		if _, err := repos.Changes.Reparent(ctx, localID, serverID); err != nil {
			return err
		}
		if _, err := repos.Changes.DeleteByEntity(ctx, localID); err != nil {
			return err
		}
		if _, err := repos.Assets.DeleteByRecord(ctx, localID); err != nil {
			return err
		}
		if err := repos.Records.Delete(ctx, localID); err != nil {
			return err
		}
		o.log.Debug(ctx, "record cleaned up", "record", localID, "server_id", serverID)
		return nil
	})
}

// recoverSynced finishes cleanup of records a previous run confirmed with the
// backend but did not purge. They are not submitted again.
func (o *Orchestrator) recoverSynced(ctx context.Context, res *models.RunResult) error {
	leftovers, err := o.store.Repositories().Records.ListByStatus(ctx, models.RecordSynced)
	if err != nil {
		return fmt.Errorf("list synced records: %w", err)
	}

	for _, rec := range leftovers {
		if err := o.cleanup(ctx, rec.ID, rec.ServerID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("cleanup %s: %v", rec.Title, err))
			o.log.Error(ctx, "recovery cleanup failed", "record", rec.ID, "error", err)
			continue
		}
		o.log.Info(ctx, "recovered synced record", "record", rec.ID, "server_id", rec.ServerID)
	}
	return nil
}
