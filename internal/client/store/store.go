// Package store is the device-local durable store: a SQLite database with an
// explicit schema version, typed repositories per table, atomic multi-table
// transactions and storage admission control for assets.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/changes"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the per-table repositories bound to one handle, either
// the database itself or an open transaction.
type Repositories struct {
	Records  records.Repository
	Assets   assets.Repository
	Changes  changes.Repository
	Metadata metadata.Repository
	IDMap    idmap.Repository
}

func newRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Records:  records.NewSQLiteRepository(db),
		Assets:   assets.NewSQLiteRepository(db),
		Changes:  changes.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
		IDMap:    idmap.NewSQLiteRepository(db),
	}
}

// MigrateFunc is called before an older on-disk schema is upgraded in place.
// Returning an error aborts Open.
type MigrateFunc func(ctx context.Context, from, to int64) error

type options struct {
	migrations fs.FS
	onMigrate  MigrateFunc
	log        logging.Logger
}

type Option func(*options)

// WithMigrations replaces the embedded schema.
func WithMigrations(fsys fs.FS) Option {
	return func(o *options) { o.migrations = fsys }
}

func WithOnMigrate(fn MigrateFunc) Option {
	return func(o *options) { o.onMigrate = fn }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

type Store struct {
	db      *sql.DB
	repos   *Repositories
	version int64
	log     logging.Logger
}

// DSN builds a modernc.org/sqlite data source for a database file with
// foreign keys enforced and a busy timeout.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database, brings its schema to the expected version and
// returns a ready store. Any schema problem yields common.ErrSchemaMigration
// and leaves nothing open.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{migrations: migrations.Migrations, log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With("module", "store")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; serializes the authoring path and the sync run
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	version, err := migrate(ctx, db, o, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrSchemaMigration, err)
	}

	return &Store{db: db, repos: newRepositories(db), version: version, log: log}, nil
}

func migrate(ctx context.Context, db *sql.DB, o options, log logging.Logger) (int64, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, o.migrations)
	if err != nil {
		return 0, err
	}

	sources := p.ListSources()
	if len(sources) == 0 {
		return 0, fmt.Errorf("no migrations found")
	}
	expected := sources[len(sources)-1].Version

	stored, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case stored > expected:
		return 0, fmt.Errorf("stored schema version %d is newer than supported %d", stored, expected)
	case stored == expected:
		return stored, nil
	}

	log.Info(ctx, "migrating local store", "from", stored, "to", expected)
	if o.onMigrate != nil {
		if err := o.onMigrate(ctx, stored, expected); err != nil {
			return 0, fmt.Errorf("migration callback: %w", err)
		}
	}

	if _, err := p.Up(ctx); err != nil {
		return 0, err
	}
	return expected, nil
}

// Repositories returns repositories bound to the database outside of any
// transaction.
func (s *Store) Repositories() *Repositories {
	return s.repos
}

// Transaction runs fn against repositories bound to a single transaction.
// Either every write made through them is committed or none is.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepositories(tx))
	})
}

// Usage returns the bytes currently held by assets.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	return s.repos.Assets.TotalSize(ctx)
}

func (s *Store) SchemaVersion() int64 {
	return s.version
}

func (s *Store) Close() error {
	return s.db.Close()
}
