package assets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const table = "assets"

var columns = []string{
	"id", "record_id", "file_name", "mime_type", "data", "thumbnail", "size", "checksum",
	"status", "remote_url", "retry_count", "last_error", "created_at", "updated_at",
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, a *models.Asset) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.AssetPending
	}

	q := sq.Insert(table).Columns(columns...).
		Values(a.ID, a.RecordID, a.FileName, a.MimeType, a.Data, a.Thumbnail, a.Size, a.Checksum,
			string(a.Status), a.RemoteURL, a.RetryCount, a.LastError, a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET file_name = excluded.file_name,
			mime_type = excluded.mime_type,
			data = excluded.data,
			thumbnail = excluded.thumbnail,
			size = excluded.size,
			checksum = excluded.checksum,
			status = excluded.status,
			remote_url = excluded.remote_url,
			retry_count = excluded.retry_count,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`)

	if _, err := dbx.Exec(ctx, r.db, q); err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	list, err := r.query(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("asset %s: %w", id, common.ErrorNotFound)
	}
	return list[0], nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Asset, error) {
	return r.query(ctx, nil)
}

func (r *SQLiteRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.Asset, error) {
	return r.query(ctx, sq.Eq{"record_id": recordID})
}

func (r *SQLiteRepository) ListUploadable(ctx context.Context, maxRetries int) ([]*models.Asset, error) {
	return r.query(ctx, sq.And{
		sq.Eq{"status": []string{string(models.AssetPending), string(models.AssetUploading), string(models.AssetError)}},
		sq.Lt{"retry_count": maxRetries},
	})
}

func (r *SQLiteRepository) SaveState(ctx context.Context, a *models.Asset) error {
	a.UpdatedAt = time.Now().UTC()
	q := sq.Update(table).
		Set("status", string(a.Status)).
		Set("remote_url", a.RemoteURL).
		Set("retry_count", a.RetryCount).
		Set("last_error", a.LastError).
		Set("updated_at", a.UpdatedAt.UnixMilli()).
		Where(sq.Eq{"id": a.ID})

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return fmt.Errorf("failed to save asset state %s: %w", a.ID, err)
	}
	return expectOne(res, a.ID)
}

func (r *SQLiteRepository) ResetFailed(ctx context.Context, id string) (int64, error) {
	where := sq.And{sq.Eq{"status": string(models.AssetError)}}
	if id != "" {
		where = append(where, sq.Eq{"id": id})
	}
	q := sq.Update(table).
		Set("status", string(models.AssetPending)).
		Set("retry_count", 0).
		Set("last_error", "").
		Set("updated_at", time.Now().UTC().UnixMilli()).
		Where(where)

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return 0, fmt.Errorf("failed to reset assets: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) DeleteByRecord(ctx context.Context, recordID string) (int64, error) {
	res, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(sq.Eq{"record_id": recordID}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete assets of %s: %w", recordID, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) TotalSize(ctx context.Context) (int64, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("COALESCE(SUM(size), 0)").From(table))
	if err != nil {
		return 0, fmt.Errorf("failed to sum asset sizes: %w", err)
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.AssetStatus]int, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("status", "COUNT(*)").From(table).GroupBy("status"))
	if err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}
	defer rows.Close()

	result := make(map[models.AssetStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[models.AssetStatus(status)] = n
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) query(ctx context.Context, where sq.Sqlizer) ([]*models.Asset, error) {
	q := sq.Select(columns...).From(table).OrderBy("created_at", "id")
	if where != nil {
		q = q.Where(where)
	}

	rows, err := dbx.Query(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to select assets: %w", err)
	}
	defer rows.Close()

	var result []*models.Asset
	for rows.Next() {
		var (
			a                    models.Asset
			status               string
			createdAt, updatedAt int64
		)
		err := rows.Scan(&a.ID, &a.RecordID, &a.FileName, &a.MimeType, &a.Data, &a.Thumbnail, &a.Size, &a.Checksum,
			&status, &a.RemoteURL, &a.RetryCount, &a.LastError, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Status = models.AssetStatus(status)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("asset %s: %w", id, common.ErrorNotFound)
	}
	return nil
}
