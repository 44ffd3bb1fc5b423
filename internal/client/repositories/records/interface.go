package records

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type Repository interface {
	// Put inserts the record or replaces every mutable column of an existing one.
	Put(ctx context.Context, r *models.Record) error

	// Get returns common.ErrorNotFound when id is unknown.
	Get(ctx context.Context, id string) (*models.Record, error)

	// GetAll lists records oldest first.
	GetAll(ctx context.Context) ([]*models.Record, error)

	// ListByStatus lists records in any of the given states, oldest first.
	ListByStatus(ctx context.Context, statuses ...models.RecordStatus) ([]*models.Record, error)

	// SetState updates status, last error and server id only.
	SetState(ctx context.Context, id string, status models.RecordStatus, lastError, serverID string) error

	Delete(ctx context.Context, id string) error

	CountByStatus(ctx context.Context) (map[models.RecordStatus]int, error)
}
