// Package changes provides PostgreSQL-backed storage for comments and saved
// references delivered from field devices.
package changes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AddComment inserts c unless its change id was already applied.
func (r *PostgresRepository) AddComment(ctx context.Context, c *models.Comment) (bool, error) {
	query := `
		INSERT INTO comments (change_id, record_id, device_id, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (change_id) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query, c.ChangeID, c.RecordID, c.DeviceID, body(c.Body))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected(res)
}

// SaveReference creates the reference or refreshes its body. Replaying the
// change that is already stored is a no-op.
func (r *PostgresRepository) SaveReference(ctx context.Context, ref *models.SavedReference) (bool, error) {
	query := `
		INSERT INTO saved_references (entity_id, change_id, record_id, device_id, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id)
		DO UPDATE SET
			change_id = EXCLUDED.change_id,
			body = EXCLUDED.body
			WHERE saved_references.change_id <> EXCLUDED.change_id
			   OR saved_references.body <> EXCLUDED.body;
	`
	res, err := r.db.ExecContext(ctx, query, ref.EntityID, ref.ChangeID, ref.RecordID, ref.DeviceID, body(ref.Body))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected(res)
}

func (r *PostgresRepository) DeleteReference(ctx context.Context, entityID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_references WHERE entity_id = $1`, entityID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected(res)
}

func body(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte(`{}`)
	}
	return []byte(b)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
