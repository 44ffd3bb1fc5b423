package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/google/uuid"
)

type commentPayload struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type referencePayload struct {
	Note    string    `json:"note,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// AddComment queues a comment on recordID, which is either a server id or
// the local id of a draft. Comments on a draft are delivered after the draft
// itself is accepted.
func (s *captureService) AddComment(ctx context.Context, recordID, text string) (*models.PendingChange, error) {
	if err := s.check(commentInput{RecordID: recordID, Text: text}); err != nil {
		return nil, err
	}

	parentID, err := s.resolveTarget(ctx, recordID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(commentPayload{Text: text, CreatedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}

	c := &models.PendingChange{
		ID:        uuid.NewString(),
		Kind:      models.KindComment,
		Operation: models.OpCreate,
		EntityID:  uuid.NewString(),
		ParentID:  parentID,
		Payload:   payload,
	}
	if err := s.store.Repositories().Changes.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveReference bookmarks a record. A queued removal of the same bookmark is
// cancelled instead, in which case the returned change is nil.
func (s *captureService) SaveReference(ctx context.Context, recordID, note string) (*models.PendingChange, error) {
	payload, err := json.Marshal(referencePayload{Note: note, SavedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return s.queueReference(ctx, recordID, models.OpCreate, payload)
}

// DeleteReference removes a bookmark. A bookmark that has not been delivered
// yet is simply dropped from the queue.
func (s *captureService) DeleteReference(ctx context.Context, recordID string) (*models.PendingChange, error) {
	return s.queueReference(ctx, recordID, models.OpDelete, nil)
}

func (s *captureService) queueReference(ctx context.Context, recordID string, op models.ChangeOperation, payload json.RawMessage) (*models.PendingChange, error) {
	if recordID == "" {
		return nil, fmt.Errorf("%w: record id is required", common.ErrInvalidRecord)
	}
	parentID, err := s.resolveTarget(ctx, recordID)
	if err != nil {
		return nil, err
	}

	var queued *models.PendingChange
	err = s.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		prev, err := findReference(ctx, repos, parentID)
		switch {
		case err != nil:
			return err
		case prev == nil:
		case prev.Operation != op:
			// opposite intents cancel out
			return repos.Changes.Delete(ctx, prev.ID)
		default:
			prev.Payload = payload
			prev.RetryCount = 0
			prev.Status = models.ChangePending
			prev.LastError = ""
			queued = prev
			return repos.Changes.Put(ctx, prev)
		}

		queued = &models.PendingChange{
			ID:        uuid.NewString(),
			Kind:      models.KindSavedReference,
			Operation: op,
			EntityID:  uuid.NewString(),
			ParentID:  parentID,
			Payload:   payload,
		}
		return repos.Changes.Put(ctx, queued)
	})
	if err != nil {
		return nil, err
	}
	return queued, nil
}

// findReference returns the queued bookmark change for parentID, if any.
func findReference(ctx context.Context, repos *store.Repositories, parentID string) (*models.PendingChange, error) {
	queued, err := repos.Changes.List(ctx, models.KindSavedReference)
	if err != nil {
		return nil, err
	}
	for _, c := range queued {
		if c.ParentID == parentID {
			return c, nil
		}
	}
	return nil, nil
}

// resolveTarget returns the id a queued change should point at: the server
// id when the draft was already accepted, the local id while it is still a
// draft, and server ids unchanged.
func (s *captureService) resolveTarget(ctx context.Context, recordID string) (string, error) {
	if !models.IsLocalID(recordID) {
		return recordID, nil
	}
	repos := s.store.Repositories()

	serverID, err := repos.IDMap.Resolve(ctx, recordID)
	if err == nil {
		return serverID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	if _, err := repos.Records.Get(ctx, recordID); err != nil {
		return "", err
	}
	return recordID, nil
}
