package changes

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Repository applies queued client changes. Every method reports whether the
// call changed anything; replays report false.
type Repository interface {
	AddComment(ctx context.Context, c *models.Comment) (bool, error)
	SaveReference(ctx context.Context, ref *models.SavedReference) (bool, error)
	DeleteReference(ctx context.Context, entityID string) (bool, error)
}
