// Package syncer drains the local queue to the backend.
//
// A run has three ordered stages: assets are uploaded first, then records
// whose attachments are all uploaded are submitted, then comments and saved
// references are delivered. Every item's outcome is written to the store as
// soon as the item finishes, so an interrupted run resumes from the first
// unfinished item. Failed items are retried on later runs until they reach
// common.MaxRetries, after which they stay in the error state until
// RetryFailed or RetryItem is called.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Connectivity reports whether the backend is reachable.
type Connectivity interface {
	IsOnline() bool
}

type Orchestrator struct {
	store  *store.Store
	remote remote.Adapter
	online Connectivity
	log    logging.Logger
	now    func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	nextID int
	subs   map[int]func(models.Progress)
}

type Option func(*Orchestrator)

// WithConnectivity makes TriggerSync refuse to run while c reports offline.
func WithConnectivity(c Connectivity) Option {
	return func(o *Orchestrator) { o.online = c }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(st *store.Store, adapter remote.Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  st,
		remote: adapter,
		log:    logging.Nop(),
		now:    time.Now,
		subs:   make(map[int]func(models.Progress)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("module", "syncer")
	return o
}

// OnProgress subscribes cb to progress events. Callbacks run on the sync
// goroutine and must not block.
func (o *Orchestrator) OnProgress(cb func(models.Progress)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = cb
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) emit(p models.Progress) {
	o.mu.Lock()
	cbs := make([]func(models.Progress), 0, len(o.subs))
	for _, cb := range o.subs {
		cbs = append(cbs, cb)
	}
	o.mu.Unlock()

	for _, cb := range cbs {
		cb(p)
	}
}

// IsRunning reports whether a run is in flight.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// TriggerSync performs one run. A call made while another run is in flight
// returns common.ErrSyncInProgress and no result. When a connectivity source
// is configured and reports offline, common.ErrOffline is returned.
//
// A non-nil error together with a result means the run was aborted by a
// local store failure; the result holds what was done up to that point.
func (o *Orchestrator) TriggerSync(ctx context.Context) (*models.RunResult, error) {
	if o.online != nil && !o.online.IsOnline() {
		return nil, common.ErrOffline
	}
	if !o.running.CompareAndSwap(false, true) {
		o.log.Debug(ctx, "sync already running, trigger ignored")
		return nil, common.ErrSyncInProgress
	}
	defer o.running.Store(false)

	return o.run(ctx)
}

func (o *Orchestrator) run(ctx context.Context) (*models.RunResult, error) {
	res := &models.RunResult{StartedAt: o.now()}
	o.log.Info(ctx, "sync started")

	err := o.runStages(ctx, res)

	res.FinishedAt = o.now()
	res.Success = err == nil && len(res.Errors) == 0

	o.setStage(ctx, models.StageIdle)
	if res.Success {
		o.setLastSync(ctx, res.FinishedAt)
	}
	o.emit(models.Progress{Stage: models.StageIdle})

	if err != nil {
		o.log.Error(ctx, "sync aborted", "error", err)
		return res, err
	}

	o.log.Info(ctx, "sync finished",
		"success", res.Success,
		"images", res.SyncedImages,
		"cases", res.SyncedCases,
		"changes", res.SyncedChanges,
		"errors", len(res.Errors),
		"took", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

func (o *Orchestrator) runStages(ctx context.Context, res *models.RunResult) error {
	if err := o.recoverSynced(ctx, res); err != nil {
		return err
	}
	if err := o.syncAssets(ctx, res); err != nil {
		return err
	}
	if err := o.syncRecords(ctx, res); err != nil {
		return err
	}
	return o.syncChanges(ctx, res)
}

func (o *Orchestrator) setStage(ctx context.Context, stage models.Stage) {
	if err := o.store.Repositories().Metadata.Set(ctx, metadata.KeyStage, []byte(stage)); err != nil {
		o.log.Warn(ctx, "failed to persist stage", "stage", stage, "error", err)
	}
}

func (o *Orchestrator) setLastSync(ctx context.Context, at time.Time) {
	if err := metadata.SetTime(ctx, o.store.Repositories().Metadata, metadata.KeyLastSyncAt, at); err != nil {
		o.log.Warn(ctx, "failed to persist last sync time", "error", err)
	}
}

// nextAttempt applies the retry policy after a failure and reports whether
// the item is now parked in the error state.
func nextAttempt(retryCount int) (int, bool) {
	retryCount++
	return retryCount, retryCount >= common.MaxRetries
}
