package assets

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type Repository interface {
	// Put inserts or fully replaces an asset.
	Put(ctx context.Context, a *models.Asset) error

	// Get returns common.ErrorNotFound when id is unknown.
	Get(ctx context.Context, id string) (*models.Asset, error)

	GetAll(ctx context.Context) ([]*models.Asset, error)

	ListByRecord(ctx context.Context, recordID string) ([]*models.Asset, error)

	// ListUploadable returns assets eligible for an automatic upload attempt:
	// pending, error or interrupted uploading items below maxRetries.
	ListUploadable(ctx context.Context, maxRetries int) ([]*models.Asset, error)

	// SaveState persists status, remote URL, retry count and last error.
	SaveState(ctx context.Context, a *models.Asset) error

	// ResetFailed moves error items (one id, or all when id is empty) back to
	// pending with a zero retry count.
	ResetFailed(ctx context.Context, id string) (int64, error)

	Delete(ctx context.Context, id string) error
	DeleteByRecord(ctx context.Context, recordID string) (int64, error)

	// TotalSize is the sum of all stored asset sizes.
	TotalSize(ctx context.Context) (int64, error)

	CountByStatus(ctx context.Context) (map[models.AssetStatus]int, error)
}
