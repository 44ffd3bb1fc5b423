package changes

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type Repository interface {
	// Put inserts or fully replaces a queued change.
	Put(ctx context.Context, c *models.PendingChange) error

	// Get returns common.ErrorNotFound when id is unknown.
	Get(ctx context.Context, id string) (*models.PendingChange, error)

	// FindByEntity returns the queued change of the given kind for entityID,
	// or common.ErrorNotFound.
	FindByEntity(ctx context.Context, kind models.ChangeKind, entityID string) (*models.PendingChange, error)

	// List returns queued changes of the given kinds in any status, oldest first.
	List(ctx context.Context, kinds ...models.ChangeKind) ([]*models.PendingChange, error)

	// ListDue returns pending changes of the given kinds below maxRetries,
	// oldest first.
	ListDue(ctx context.Context, maxRetries int, kinds ...models.ChangeKind) ([]*models.PendingChange, error)

	// SaveState persists retry count, last error and status.
	SaveState(ctx context.Context, c *models.PendingChange) error

	// ResetFailed moves error items (one id, or all when id is empty) back to
	// pending with a zero retry count.
	ResetFailed(ctx context.Context, id string) (int64, error)

	// Reparent points every change whose parent is from at to instead.
	Reparent(ctx context.Context, from, to string) (int64, error)

	Delete(ctx context.Context, id string) error
	DeleteByEntity(ctx context.Context, entityID string) (int64, error)

	// DeleteByParent drops changes attached to parentID.
	DeleteByParent(ctx context.Context, parentID string) (int64, error)

	CountByStatus(ctx context.Context, kinds ...models.ChangeKind) (map[models.ChangeStatus]int, error)
}
