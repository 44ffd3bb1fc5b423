package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/autosync"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/network"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/client/syncer"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"golang.org/x/term"
)

type App struct {
	config  *config.Config
	log     logging.Logger
	store   *store.Store
	capture services.CaptureService
	syncer  *syncer.Orchestrator
	monitor *network.Monitor
	runner  *autosync.Runner

	reader   *bufio.Reader
	out      io.Writer
	progress *progressPrinter
	closers  []io.Closer
}

// NewApp opens the local store and wires the sync machinery. A store that
// cannot be opened or migrated is fatal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile})
	a := &App{
		config:  c,
		log:     logger,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closers: []io.Closer{logCloser},
	}
	a.progress = newProgressPrinter(a.out, term.IsTerminal(int(os.Stdout.Fd())))

	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		a.Close()
		return nil, err
	}
	if err := filex.EnsureParentDir(c.DBPath()); err != nil {
		a.Close()
		return nil, err
	}

	st, err := store.Open(ctx, store.DSN(c.DBPath()),
		store.WithLogger(logger),
		store.WithOnMigrate(func(ctx context.Context, from, to int64) error {
			logger.Info(ctx, "upgrading local store", "from", from, "to", to)
			return nil
		}))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st)

	rc, err := remote.NewGRPCClient(c.ServerEndpointAddr, c.DeviceID, remote.WithRequestTimeout(c.RequestTimeout))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, rc)

	a.monitor = network.NewMonitor(rc, c.OnlineCheckInterval, c.ProbeTimeout, logger)
	a.syncer = syncer.New(st, rc, syncer.WithConnectivity(a.monitor), syncer.WithLogger(logger))
	a.capture = services.NewCaptureService(st, logger)
	a.runner = autosync.New(a.syncer, a.monitor, autosync.Options{
		Interval:    c.AutoSyncInterval,
		SettleDelay: c.ReconnectSettleDelay,
		TriggerFile: c.TriggerFile,
	}, logger)

	return a, nil
}

// Run starts background sync and blocks in the REPL until the user exits or
// ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error(ctx, "auto sync stopped", "error", err)
		}
	}()

	unsubscribe := a.syncer.OnProgress(a.progress.Render)
	defer unsubscribe()

	printlnFn("Welcome to fieldsync (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, a.reader)

	cancel()
	wg.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
