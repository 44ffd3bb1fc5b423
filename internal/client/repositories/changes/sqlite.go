package changes

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

const table = "pending_changes"

var columns = []string{
	"id", "kind", "operation", "entity_id", "parent_id", "payload",
	"retry_count", "last_error", "status", "created_at", "updated_at",
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, c *models.PendingChange) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.ChangePending
	}

	q := sq.Insert(table).Columns(columns...).
		Values(c.ID, string(c.Kind), string(c.Operation), c.EntityID, c.ParentID, []byte(c.Payload),
			c.RetryCount, c.LastError, string(c.Status), c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET operation = excluded.operation,
			entity_id = excluded.entity_id,
			parent_id = excluded.parent_id,
			payload = excluded.payload,
			retry_count = excluded.retry_count,
			last_error = excluded.last_error,
			status = excluded.status,
			updated_at = excluded.updated_at`)

	if _, err := dbx.Exec(ctx, r.db, q); err != nil {
		return fmt.Errorf("failed to upsert change %s: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.PendingChange, error) {
	return r.one(ctx, sq.Eq{"id": id}, id)
}

func (r *SQLiteRepository) FindByEntity(ctx context.Context, kind models.ChangeKind, entityID string) (*models.PendingChange, error) {
	return r.one(ctx, sq.Eq{"kind": string(kind), "entity_id": entityID}, entityID)
}

func (r *SQLiteRepository) List(ctx context.Context, kinds ...models.ChangeKind) ([]*models.PendingChange, error) {
	return r.query(ctx, kindFilter(kinds))
}

func (r *SQLiteRepository) ListDue(ctx context.Context, maxRetries int, kinds ...models.ChangeKind) ([]*models.PendingChange, error) {
	return r.query(ctx, sq.And{
		kindFilter(kinds),
		sq.Eq{"status": string(models.ChangePending)},
		sq.Lt{"retry_count": maxRetries},
	})
}

func (r *SQLiteRepository) SaveState(ctx context.Context, c *models.PendingChange) error {
	c.UpdatedAt = time.Now().UTC()
	q := sq.Update(table).
		Set("retry_count", c.RetryCount).
		Set("last_error", c.LastError).
		Set("status", string(c.Status)).
		Set("updated_at", c.UpdatedAt.UnixMilli()).
		Where(sq.Eq{"id": c.ID})

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return fmt.Errorf("failed to save change state %s: %w", c.ID, err)
	}
	return expectOne(res, c.ID)
}

func (r *SQLiteRepository) ResetFailed(ctx context.Context, id string) (int64, error) {
	where := sq.And{sq.Eq{"status": string(models.ChangeError)}}
	if id != "" {
		where = append(where, sq.Or{sq.Eq{"id": id}, sq.Eq{"entity_id": id}})
	}
	q := sq.Update(table).
		Set("status", string(models.ChangePending)).
		Set("retry_count", 0).
		Set("last_error", "").
		Set("updated_at", time.Now().UTC().UnixMilli()).
		Where(where)

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return 0, fmt.Errorf("failed to reset changes: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Reparent(ctx context.Context, from, to string) (int64, error) {
	q := sq.Update(table).
		Set("parent_id", to).
		Set("updated_at", time.Now().UTC().UnixMilli()).
		Where(sq.Eq{"parent_id": from})

	res, err := dbx.Exec(ctx, r.db, q)
	if err != nil {
		return 0, fmt.Errorf("failed to reparent changes of %s: %w", from, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete change %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) DeleteByEntity(ctx context.Context, entityID string) (int64, error) {
	return r.deleteWhere(ctx, sq.Eq{"entity_id": entityID})
}

func (r *SQLiteRepository) DeleteByParent(ctx context.Context, parentID string) (int64, error) {
	return r.deleteWhere(ctx, sq.Eq{"parent_id": parentID})
}

func (r *SQLiteRepository) deleteWhere(ctx context.Context, where sq.Sqlizer) (int64, error) {
	res, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(where))
	if err != nil {
		return 0, fmt.Errorf("failed to delete changes: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context, kinds ...models.ChangeKind) (map[models.ChangeStatus]int, error) {
	q := sq.Select("status", "COUNT(*)").From(table).
		Where(kindFilter(kinds)).
		GroupBy("status")

	rows, err := dbx.Query(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count changes: %w", err)
	}
	defer rows.Close()

	result := make(map[models.ChangeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[models.ChangeStatus(status)] = n
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) one(ctx context.Context, where sq.Sqlizer, key string) (*models.PendingChange, error) {
	list, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("change %s: %w", key, common.ErrorNotFound)
	}
	return list[0], nil
}

func (r *SQLiteRepository) query(ctx context.Context, where sq.Sqlizer) ([]*models.PendingChange, error) {
	q := sq.Select(columns...).From(table).Where(where).OrderBy("created_at", "id")

	rows, err := dbx.Query(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to select changes: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingChange
	for rows.Next() {
		var (
			c                       models.PendingChange
			kind, operation, status string
			payload                 []byte
			createdAt, updatedAt    int64
		)
		err := rows.Scan(&c.ID, &kind, &operation, &c.EntityID, &c.ParentID, &payload,
			&c.RetryCount, &c.LastError, &status, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Kind = models.ChangeKind(kind)
		c.Operation = models.ChangeOperation(operation)
		c.Status = models.ChangeStatus(status)
		if len(payload) > 0 {
			c.Payload = payload
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// kindFilter matches any of kinds, or every row when kinds is empty.
func kindFilter(kinds []models.ChangeKind) sq.Sqlizer {
	if len(kinds) == 0 {
		return sq.And{}
	}
	return sq.Eq{"kind": kindStrings(kinds)}
}

func kindStrings(kinds []models.ChangeKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("change %s: %w", id, common.ErrorNotFound)
	}
	return nil
}
