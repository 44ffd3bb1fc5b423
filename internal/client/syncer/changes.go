package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var errParentNotSynced = errors.New("parent record not synced yet")

func (o *Orchestrator) syncChanges(ctx context.Context, res *models.RunResult) error {
	o.setStage(ctx, models.StageChanges)
	repos := o.store.Repositories()

	due, err := repos.Changes.ListDue(ctx, common.MaxRetries, models.KindComment, models.KindSavedReference)
	if err != nil {
		return fmt.Errorf("list changes: %w", err)
	}

	// changes waiting on a local draft are not attempted and not counted
	var ready []*models.PendingChange
	for _, c := range due {
		parent, err := o.resolveParent(ctx, c.ParentID)
		if errors.Is(err, errParentNotSynced) {
			continue
		}
		if err != nil {
			return err
		}
		c.ParentID = parent
		ready = append(ready, c)
	}

	for i, c := range ready {
		applyErr := o.remote.ApplyChange(ctx, remote.Change{
			ID:        c.ID,
			Kind:      string(c.Kind),
			Operation: string(c.Operation),
			EntityID:  c.EntityID,
			ParentID:  c.ParentID,
			Payload:   c.Payload,
		})

		if applyErr == nil {
			if err := repos.Changes.Delete(ctx, c.ID); err != nil {
				return err
			}
			res.SyncedChanges++
		} else {
			var parked bool
			c.RetryCount, parked = nextAttempt(c.RetryCount)
			c.LastError = applyErr.Error()
			c.Status = models.ChangePending
			if parked {
				c.Status = models.ChangeError
			}
			if err := repos.Changes.SaveState(ctx, c); err != nil {
				return err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", c.Kind, c.ID, applyErr))
			o.log.Warn(ctx, "change delivery failed", "change", c.ID, "attempt", c.RetryCount, "error", applyErr)
		}

		p := models.Progress{Stage: models.StageChanges, CurrentItem: i + 1, TotalItems: len(ready), CurrentItemName: string(c.Kind)}
		if applyErr != nil {
			p.Error = applyErr.Error()
		}
		o.emit(p)
	}
	return nil
}

// resolveParent maps a local record id to its server id. Ids that are not
// local pass through unchanged.
func (o *Orchestrator) resolveParent(ctx context.Context, parentID string) (string, error) {
	if !models.IsLocalID(parentID) {
		return parentID, nil
	}
	serverID, err := o.store.Repositories().IDMap.Resolve(ctx, parentID)
	if errors.Is(err, common.ErrorNotFound) {
		return "", errParentNotSynced
	}
	if err != nil {
		return "", err
	}
	return serverID, nil
}
