// Package autosync starts sync runs without user interaction: after the
// device reconnects, on a fixed interval, and when an external trigger file
// is written.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Syncer is the part of the orchestrator the runner drives.
type Syncer interface {
	TriggerSync(ctx context.Context) (*models.RunResult, error)
	GetPendingCount(ctx context.Context) (models.PendingCount, error)
}

// Monitor is the connectivity source.
type Monitor interface {
	IsOnline() bool
	OnReconnect(cb func()) (unsubscribe func())
	Run(ctx context.Context) error
}

type Options struct {
	Interval    time.Duration
	SettleDelay time.Duration
	// TriggerFile is watched for create and write events. Empty disables.
	TriggerFile string
}

type Runner struct {
	syncer  Syncer
	monitor Monitor
	opts    Options
	log     logging.Logger

	reconnected chan struct{}
	kick        chan struct{}
	unsubscribe func()
}

// New subscribes to m right away so reconnects that happen before Run starts
// are not lost. Run is meant to be called once.
func New(s Syncer, m Monitor, opts Options, log logging.Logger) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = common.DefaultAutoSyncInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = common.DefaultReconnectSettleDelay
	}
	if log == nil {
		log = logging.Nop()
	}
	r := &Runner{
		syncer:      s,
		monitor:     m,
		opts:        opts,
		log:         log.With("module", "autosync"),
		reconnected: make(chan struct{}, 1),
		kick:        make(chan struct{}, 1),
	}
	r.unsubscribe = m.OnReconnect(func() { signal(r.reconnected) })
	return r
}

// Run blocks until ctx is cancelled or one of its goroutines fails.
func (r *Runner) Run(ctx context.Context) error {
	defer r.unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.monitor.Run(ctx) })
	g.Go(func() error { return r.loop(ctx) })
	if r.opts.TriggerFile != "" {
		g.Go(func() error { return r.watch(ctx) })
	}
	return g.Wait()
}

// Kick asks for a run at the next opportunity.
func (r *Runner) Kick() {
	signal(r.kick)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	// settle is armed on reconnect and re-armed by every further reconnect
	// before it fires
	settle := time.NewTimer(r.opts.SettleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.reconnected:
			settle.Reset(r.opts.SettleDelay)
		case <-settle.C:
			r.maybeSync(ctx, "reconnect")
		case <-ticker.C:
			r.maybeSync(ctx, "interval")
		case <-r.kick:
			r.maybeSync(ctx, "external")
		}
	}
}

// maybeSync runs the orchestrator when online and something is queued.
func (r *Runner) maybeSync(ctx context.Context, reason string) {
	if !r.monitor.IsOnline() {
		r.log.Debug(ctx, "skipping sync while offline", "reason", reason)
		return
	}

	pc, err := r.syncer.GetPendingCount(ctx)
	if err != nil {
		r.log.Error(ctx, "failed to count pending items", "error", err)
		return
	}
	if pc.Total == 0 {
		return
	}

	r.log.Info(ctx, "auto sync", "reason", reason, "pending", pc.Total)
	res, err := r.syncer.TriggerSync(ctx)
	switch {
	case errors.Is(err, common.ErrSyncInProgress), errors.Is(err, common.ErrOffline):
		r.log.Debug(ctx, "auto sync skipped", "reason", reason, "error", err)
	case err != nil:
		r.log.Error(ctx, "auto sync failed", "reason", reason, "error", err)
	case !res.Success:
		r.log.Warn(ctx, "auto sync finished with errors", "errors", len(res.Errors))
	}
}

func (r *Runner) watch(ctx context.Context) error {
	target := filepath.Clean(r.opts.TriggerFile)
	dir := filepath.Dir(target)
	if _, err := filex.EnsureDir(dir); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Chmod) {
				r.log.Debug(ctx, "trigger file touched", "op", ev.Op.String())
				r.Kick()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn(ctx, "watcher error", "error", err)
		}
	}
}
