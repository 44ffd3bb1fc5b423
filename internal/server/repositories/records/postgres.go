// Package records provides the PostgreSQL-backed store of accepted records.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts rec or, if the same device submitted its local id before,
// refreshes the stored fields. Either way the existing server id is returned,
// so a device that lost the first response gets the same id on resubmission.
// Local ids are only unique per device.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) (string, bool, error) {
	payload := rec.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	attachments := rec.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	att, err := json.Marshal(attachments)
	if err != nil {
		return "", false, fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
		INSERT INTO records (local_id, device_id, title, payload, attachments)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, local_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			payload = EXCLUDED.payload,
			attachments = EXCLUDED.attachments,
			updated_at = now()
		RETURNING id, (xmax = 0) AS created;
	`
	var (
		id      string
		created bool
	)
	err = r.db.QueryRowContext(ctx, query,
		rec.LocalID, rec.DeviceID, rec.Title, []byte(payload), att).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("db error: %w", err)
	}
	return id, created, nil
}

// Get returns the record with the given server id or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT id, local_id, device_id, title, payload, attachments, created_at, updated_at
		FROM records WHERE id = $1`

	var (
		rec         models.Record
		payload     []byte
		attachments []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.LocalID, &rec.DeviceID, &rec.Title, &payload, &attachments,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.Payload = json.RawMessage(payload)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &rec.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", id, err)
		}
	}
	return &rec, nil
}

// Delete removes a record with its comments and references. Deleting an
// unknown id reports false and no error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}
