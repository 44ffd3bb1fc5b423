package metadata

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const table = "metadata"

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("value").From(table).Where(sq.Eq{"key": key}))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var value []byte
	if err := rows.Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	q := sq.Insert(table).Columns("key", "value").Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if _, err := dbx.Exec(ctx, r.db, q); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := dbx.Exec(ctx, r.db, sq.Delete(table).Where(sq.Eq{"key": key})); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := dbx.Exec(ctx, r.db, sq.Delete(table)); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("key", "value").From(table))
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}

	return result, nil
}
