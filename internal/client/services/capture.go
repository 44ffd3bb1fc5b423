// Package services contains application services for the fieldsync client.
// This file defines the capture service: authoring draft records, attaching
// assets under the storage quota, and queueing comments and saved references
// for the next sync run.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/media"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CaptureService defines the offline authoring operations used by the CLI.
//
// Contract:
//   - Every write lands in the local store only; nothing talks to the network.
//   - Admission failures (ErrQuotaExceeded, ErrUnsupportedType,
//     ErrInvalidRecord) are returned to the caller and never queued.
//   - A record and the queue entry describing it are written atomically.
type CaptureService interface {
	CreateRecord(ctx context.Context, title string, fields map[string]any) (*models.Record, error)
	CreateRecordWithAssets(ctx context.Context, title string, fields map[string]any, assets []AssetInput) (*models.Record, []*models.Asset, error)
	UpdateRecord(ctx context.Context, id, title string, fields map[string]any) (*models.Record, error)
	AttachAsset(ctx context.Context, recordID string, in AssetInput) (*models.Asset, error)

	AddComment(ctx context.Context, recordID, text string) (*models.PendingChange, error)
	SaveReference(ctx context.Context, recordID, note string) (*models.PendingChange, error)
	DeleteReference(ctx context.Context, recordID string) (*models.PendingChange, error)

	DiscardRecord(ctx context.Context, id string) error
	DiscardAsset(ctx context.Context, id string) error

	ListRecords(ctx context.Context) ([]*models.Record, error)
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	ListAssets(ctx context.Context, recordID string) ([]*models.Asset, error)
}

// AssetInput is a file handed over by the user. An empty MimeType is
// detected from the content.
type AssetInput struct {
	FileName string `validate:"required,max=255"`
	MimeType string
	Data     []byte `validate:"required"`
}

type recordInput struct {
	Title string `validate:"required,max=200"`
}

type commentInput struct {
	RecordID string `validate:"required"`
	Text     string `validate:"required,max=4000"`
}

type captureService struct {
	store    *store.Store
	log      logging.Logger
	validate *validator.Validate
}

// NewCaptureService constructs a CaptureService writing into st.
func NewCaptureService(st *store.Store, log logging.Logger) CaptureService {
	if log == nil {
		log = logging.Nop()
	}
	return &captureService{
		store:    st,
		log:      log.With("module", "capture"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *captureService) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	return nil
}

func encodeFields(fields map[string]any) (json.RawMessage, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	return b, nil
}

func (s *captureService) CreateRecord(ctx context.Context, title string, fields map[string]any) (*models.Record, error) {
	rec, _, err := s.CreateRecordWithAssets(ctx, title, fields, nil)
	return rec, err
}

// CreateRecordWithAssets stores a draft together with its attachments. If any
// attachment is rejected nothing is stored.
func (s *captureService) CreateRecordWithAssets(ctx context.Context, title string, fields map[string]any, inputs []AssetInput) (*models.Record, []*models.Asset, error) {
	if err := s.check(recordInput{Title: title}); err != nil {
		return nil, nil, err
	}
	payload, err := encodeFields(fields)
	if err != nil {
		return nil, nil, err
	}

	assets := make([]*models.Asset, 0, len(inputs))
	for _, in := range inputs {
		a, err := s.prepareAsset(ctx, "", in)
		if err != nil {
			return nil, nil, err
		}
		assets = append(assets, a)
	}

	rec := &models.Record{
		ID:      models.GenerateID(),
		Title:   title,
		Payload: payload,
		Status:  models.RecordPending,
	}

	err = s.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		if err := repos.Records.Put(ctx, rec); err != nil {
			return err
		}
		if err := repos.Changes.Put(ctx, &models.PendingChange{
			ID:        uuid.NewString(),
			Kind:      models.KindRecord,
			Operation: models.OpCreate,
			EntityID:  rec.ID,
			Payload:   payload,
		}); err != nil {
			return err
		}
		for _, a := range assets {
			a.RecordID = rec.ID
			if err := store.AdmitAsset(ctx, repos, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(ctx, "record captured", "record", rec.ID, "assets", len(assets))
	return rec, assets, nil
}

// UpdateRecord rewrites a local draft. The queued create is kept and gets the
// new snapshot. A record in the error state stays there until retried.
func (s *captureService) UpdateRecord(ctx context.Context, id, title string, fields map[string]any) (*models.Record, error) {
	if err := s.check(recordInput{Title: title}); err != nil {
		return nil, err
	}
	payload, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}

	var rec *models.Record
	err = s.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		rec, err = repos.Records.Get(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status == models.RecordSynced {
			return fmt.Errorf("%w: record %s was already accepted by the server", common.ErrInvalidRecord, id)
		}

		rec.Title = title
		rec.Payload = payload
		if err := repos.Records.Put(ctx, rec); err != nil {
			return err
		}

		change, err := repos.Changes.FindByEntity(ctx, models.KindRecord, id)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			change = &models.PendingChange{
				ID:        uuid.NewString(),
				Kind:      models.KindRecord,
				Operation: models.OpUpdate,
				EntityID:  id,
			}
		case err != nil:
			return err
		}
		change.Payload = payload
		return repos.Changes.Put(ctx, change)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *captureService) AttachAsset(ctx context.Context, recordID string, in AssetInput) (*models.Asset, error) {
	a, err := s.prepareAsset(ctx, recordID, in)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		rec, err := repos.Records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.Status == models.RecordSynced {
			return fmt.Errorf("%w: record %s was already accepted by the server", common.ErrInvalidRecord, recordID)
		}
		return store.AdmitAsset(ctx, repos, a)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "asset attached", "record", recordID, "asset", a.ID, "size", a.Size)
	return a, nil
}

// prepareAsset validates the input and builds the stored representation.
// The quota is checked later, inside the write transaction.
func (s *captureService) prepareAsset(ctx context.Context, recordID string, in AssetInput) (*models.Asset, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	size := int64(len(in.Data))
	if err := store.CheckQuota(size, 0); err != nil {
		return nil, err
	}

	mime, err := media.Resolve(in.MimeType, in.Data)
	if err != nil {
		return nil, err
	}

	a := &models.Asset{
		ID:       models.GenerateID(),
		RecordID: recordID,
		FileName: in.FileName,
		MimeType: mime,
		Data:     models.EncodeDataURL(mime, in.Data),
		Size:     size,
		Checksum: cryptox.Checksum(in.Data),
		Status:   models.AssetPending,
	}

	if media.IsImage(mime) {
		thumb, err := media.Thumbnail(in.Data)
		if err != nil {
			s.log.Warn(ctx, "thumbnail not generated", "file", in.FileName, "error", err)
		} else {
			a.Thumbnail = models.EncodeDataURL("image/jpeg", thumb)
		}
	}
	return a, nil
}

// DiscardRecord drops a draft with its assets, its queue entry and any
// comments still waiting for it.
func (s *captureService) DiscardRecord(ctx context.Context, id string) error {
	err := s.store.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		if _, err := repos.Changes.DeleteByEntity(ctx, id); err != nil {
			return err
		}
		if _, err := repos.Changes.DeleteByParent(ctx, id); err != nil {
			return err
		}
		if _, err := repos.Assets.DeleteByRecord(ctx, id); err != nil {
			return err
		}
		return repos.Records.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "record discarded", "record", id)
	return nil
}

func (s *captureService) DiscardAsset(ctx context.Context, id string) error {
	if err := s.store.Repositories().Assets.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "asset discarded", "asset", id)
	return nil
}

func (s *captureService) ListRecords(ctx context.Context) ([]*models.Record, error) {
	return s.store.Repositories().Records.GetAll(ctx)
}

func (s *captureService) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	return s.store.Repositories().Records.Get(ctx, id)
}

func (s *captureService) ListAssets(ctx context.Context, recordID string) ([]*models.Asset, error) {
	return s.store.Repositories().Assets.ListByRecord(ctx, recordID)
}
