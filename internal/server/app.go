// Package server wires the fieldsync backend: PostgreSQL storage with goose
// migrations, S3 upload presigning and the gRPC sync endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"

	gs "github.com/dmitrijs2005/fieldsync/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	db        *sql.DB
	records   services.RecordService
	uploads   services.UploadService
}

// NewApp connects to PostgreSQL, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile})

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	return &App{
		config:    c,
		logger:    logger,
		logCloser: logCloser,
		db:        db,
		records:   services.NewRecordService(db, rm),
		uploads:   services.NewUploadService(c),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC until ctx is cancelled or a termination signal arrives,
// then releases the database and log sink.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer func() {
		_ = app.db.Close()
		_ = app.logCloser.Close()
	}()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.records, app.uploads)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	return nil
}
