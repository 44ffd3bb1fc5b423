package records

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type Repository interface {
	// Upsert stores rec keyed by its LocalID and returns the server id. created
	// is false when the local id had already been accepted.
	Upsert(ctx context.Context, rec *models.Record) (id string, created bool, err error)
	Get(ctx context.Context, id string) (*models.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
}
