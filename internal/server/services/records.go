// Package services implements the backend use cases behind the gRPC sync
// endpoint: accepting records, applying queued changes and issuing upload
// targets.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Change kinds and operations understood by ApplyChange. They match the
// values the field client queues.
const (
	KindRecord         = "record"
	KindComment        = "comment"
	KindSavedReference = "saved-reference"

	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change is one queued client mutation.
type Change struct {
	ID        string
	Kind      string
	Operation string
	EntityID  string
	ParentID  string
	DeviceID  string
	Payload   json.RawMessage
}

type RecordService interface {
	// SubmitRecord stores rec and returns its server id. Submitting an
	// already accepted LocalID returns the original id with created=false.
	SubmitRecord(ctx context.Context, rec *models.Record) (id string, created bool, err error)
	// ApplyChange applies ch once. Replays return applied=false.
	ApplyChange(ctx context.Context, ch Change) (applied bool, err error)
}

type recordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewRecordService(db *sql.DB, repomanager repomanager.RepositoryManager) RecordService {
	return &recordService{db: db, repomanager: repomanager}
}

func (s *recordService) SubmitRecord(ctx context.Context, rec *models.Record) (string, bool, error) {
	if rec.LocalID == "" {
		return "", false, fmt.Errorf("%w: local id required", common.ErrInvalidRecord)
	}
	if rec.DeviceID == "" {
		return "", false, fmt.Errorf("%w: device id required", common.ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.Title) == "" {
		return "", false, fmt.Errorf("%w: title required", common.ErrInvalidRecord)
	}
	if len(rec.Payload) > 0 && !json.Valid(rec.Payload) {
		return "", false, fmt.Errorf("%w: payload is not JSON", common.ErrInvalidRecord)
	}

	return s.repomanager.Records(s.db).Upsert(ctx, rec)
}

func (s *recordService) ApplyChange(ctx context.Context, ch Change) (bool, error) {
	if ch.ID == "" {
		return false, fmt.Errorf("%w: change id required", common.ErrInvalidChange)
	}
	if len(ch.Payload) > 0 && !json.Valid(ch.Payload) {
		return false, fmt.Errorf("%w: payload is not JSON", common.ErrInvalidChange)
	}

	var applied bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		switch ch.Kind {
		case KindComment:
			applied, err = s.applyComment(ctx, tx, ch)
		case KindSavedReference:
			applied, err = s.applyReference(ctx, tx, ch)
		case KindRecord:
			applied, err = s.applyRecord(ctx, tx, ch)
		default:
			err = fmt.Errorf("%w: unknown kind %q", common.ErrInvalidChange, ch.Kind)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *recordService) applyComment(ctx context.Context, tx dbx.DBTX, ch Change) (bool, error) {
	if ch.Operation != OpCreate {
		return false, fmt.Errorf("%w: comments only support %s", common.ErrInvalidChange, OpCreate)
	}
	if err := s.requireRecord(ctx, tx, ch.ParentID); err != nil {
		return false, err
	}
	return s.repomanager.Changes(tx).AddComment(ctx, &models.Comment{
		ChangeID: ch.ID,
		RecordID: ch.ParentID,
		DeviceID: ch.DeviceID,
		Body:     ch.Payload,
	})
}

func (s *recordService) applyReference(ctx context.Context, tx dbx.DBTX, ch Change) (bool, error) {
	if ch.EntityID == "" {
		return false, fmt.Errorf("%w: entity id required", common.ErrInvalidChange)
	}
	repo := s.repomanager.Changes(tx)

	switch ch.Operation {
	case OpCreate, OpUpdate:
		if err := s.requireRecord(ctx, tx, ch.ParentID); err != nil {
			return false, err
		}
		return repo.SaveReference(ctx, &models.SavedReference{
			EntityID: ch.EntityID,
			ChangeID: ch.ID,
			RecordID: ch.ParentID,
			DeviceID: ch.DeviceID,
			Body:     ch.Payload,
		})
	case OpDelete:
		return repo.DeleteReference(ctx, ch.EntityID)
	default:
		return false, fmt.Errorf("%w: unknown operation %q", common.ErrInvalidChange, ch.Operation)
	}
}

// applyRecord handles record deletions. Creates and updates arrive through
// SubmitRecord.
func (s *recordService) applyRecord(ctx context.Context, tx dbx.DBTX, ch Change) (bool, error) {
	if ch.Operation != OpDelete {
		return false, fmt.Errorf("%w: records change through SubmitRecord", common.ErrInvalidChange)
	}
	if _, err := uuid.Parse(ch.EntityID); err != nil {
		return false, fmt.Errorf("%w: record id %q", common.ErrInvalidChange, ch.EntityID)
	}
	return s.repomanager.Records(tx).Delete(ctx, ch.EntityID)
}

// requireRecord checks that id is a server record id that exists. Local
// offline ids are rejected; the client must resolve them first.
func (s *recordService) requireRecord(ctx context.Context, tx dbx.DBTX, id string) error {
	if strings.HasPrefix(id, common.LocalIDPrefix) {
		return fmt.Errorf("%w: unresolved local id %q", common.ErrInvalidChange, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: record id %q", common.ErrInvalidChange, id)
	}
	_, err := s.repomanager.Records(tx).Get(ctx, id)
	return err
}
