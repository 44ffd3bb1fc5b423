// Package idmap remembers which server id replaced a local id, so queued
// changes created against a local draft can still be delivered after the
// draft itself was cleaned up.
package idmap

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const table = "id_map"

type Repository interface {
	Put(ctx context.Context, localID, serverID string) error
	// Resolve returns common.ErrorNotFound for unknown local ids.
	Resolve(ctx context.Context, localID string) (string, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, localID, serverID string) error {
	q := sq.Insert(table).Columns("local_id", "server_id", "mapped_at").
		Values(localID, serverID, time.Now().UTC().UnixMilli()).
		Suffix("ON CONFLICT(local_id) DO UPDATE SET server_id = excluded.server_id, mapped_at = excluded.mapped_at")
	if _, err := dbx.Exec(ctx, r.db, q); err != nil {
		return fmt.Errorf("failed to map %s: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Resolve(ctx context.Context, localID string) (string, error) {
	rows, err := dbx.Query(ctx, r.db, sq.Select("server_id").From(table).Where(sq.Eq{"local_id": localID}))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", localID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("id %s: %w", localID, common.ErrorNotFound)
	}
	var serverID string
	if err := rows.Scan(&serverID); err != nil {
		return "", err
	}
	return serverID, nil
}
