package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const table = "records"

var columns = []string{"id", "title", "payload", "status", "last_error", "server_id", "created_at", "updated_at"}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = models.RecordPending
	}

	q := sq.Insert(table).Columns(columns...).
		Values(rec.ID, rec.Title, []byte(rec.Payload), string(rec.Status), rec.LastError, rec.ServerID,
			rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET title = excluded.title,
			payload = excluded.payload,
			status = excluded.status,
			last_error = excluded.last_error,
			server_id = excluded.server_id,
			updated_at = excluded.updated_at`)

	if _, err := dbx.Exec(ctx, r.db, q); err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	list, err := r.query(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrorNotFound)
	}
	return list[0], nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Record, error) {
	return r.query(ctx, nil)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, statuses ...models.RecordStatus) ([]*models.Record, error) {
	s := make([]string, len(statuses))
	for i, st := range statuses {
		s[i] = string(st)
	}
	return r.query(ctx, sq.Eq{"status": s})
}

func (r *SQLiteRepository) SetState(ctx context.Context, id string, status models.RecordStatus, lastError, serverID string) error {
	q := sq.Update(table).
		Set("status", string(status)).
		Set("last_error", lastError).
		Set("server_id", serverID).
		Set("updated_at", time.Now().UTC().UnixMilli()).
		Where(sq.Eq{"id": id})

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.RecordStatus]int, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("status", "COUNT(*)").From(table).GroupBy("status"))
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	result := make(map[models.RecordStatus]int)
	for rows.Next() {
		var status models.RecordStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[status] = n
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) query(ctx context.Context, where sq.Sqlizer) ([]*models.Record, error) {
	q := sq.Select(columns...).From(table).OrderBy("created_at", "id")
	if where != nil {
		q = q.Where(where)
	}

	rows, err := dbx.Query(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scan(rows *sql.Rows) (*models.Record, error) {
	var (
		rec                  models.Record
		payload              []byte
		createdAt, updatedAt int64
	)
	if err := rows.Scan(&rec.ID, &rec.Title, &payload, &rec.Status, &rec.LastError, &rec.ServerID, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	if len(payload) > 0 {
		rec.Payload = payload
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, common.ErrorNotFound)
	}
	if n != 1 {
		return errors.New("wrong rows affected count")
	}
	return nil
}
