// Package network tracks reachability of the backend and reports the
// offline to online transition.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Pinger is the connectivity probe, usually the remote client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()
}

// NewMonitor returns a monitor in the offline state. pinger may be nil when
// the signal is driven only through SetOnline.
func NewMonitor(pinger Pinger, interval, timeout time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		log:      log.With("module", "network"),
		subs:     make(map[int]func()),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the current signal. Reconnect callbacks run, in the
// caller's goroutine, only when the state flips from offline to online.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var fire []func()
	if online && !wasOnline {
		fire = make([]func(), 0, len(m.subs))
		for _, cb := range m.subs {
			fire = append(fire, cb)
		}
	}
	m.mu.Unlock()

	if wasOnline != online {
		state := "offline"
		if online {
			state = "online"
		}
		m.log.Info(context.Background(), "connectivity changed", "state", state)
	}

	for _, cb := range fire {
		cb()
	}
}

// OnReconnect subscribes cb to offline to online edges. The returned func
// removes the subscription.
func (m *Monitor) OnReconnect(cb func()) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Probe pings the backend once and updates the signal.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.pinger == nil {
		return m.IsOnline()
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(ctx)
	cancel()

	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}
	m.SetOnline(err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if m.pinger == nil {
		<-ctx.Done()
		return nil
	}

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
