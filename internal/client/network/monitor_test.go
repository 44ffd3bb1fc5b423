package network

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return err
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := NewMonitor(nil, time.Second, time.Second, logging.Nop())
	assert.False(t, m.IsOnline())
}

func TestMonitor_FiresOncePerOfflineOnlineEdge(t *testing.T) {
	m := NewMonitor(nil, time.Second, time.Second, logging.Nop())
	var fired int
	m.OnReconnect(func() { fired++ })

	m.SetOnline(true)
	m.SetOnline(true)
	m.SetOnline(true)
	assert.Equal(t, 1, fired)

	m.SetOnline(false)
	m.SetOnline(false)
	assert.Equal(t, 1, fired)

	m.SetOnline(true)
	assert.Equal(t, 2, fired)
	assert.True(t, m.IsOnline())
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := NewMonitor(nil, time.Second, time.Second, logging.Nop())
	var a, b int
	unsubA := m.OnReconnect(func() { a++ })
	m.OnReconnect(func() { b++ })

	m.SetOnline(true)
	unsubA()
	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestMonitor_CallbackMayQueryState(t *testing.T) {
	m := NewMonitor(nil, time.Second, time.Second, logging.Nop())
	var seen bool
	m.OnReconnect(func() { seen = m.IsOnline() })

	m.SetOnline(true)
	assert.True(t, seen)
}

func TestMonitor_ProbeDrivesState(t *testing.T) {
	p := &scriptedPinger{results: []error{errors.New("down"), nil, nil, errors.New("down"), nil}}
	m := NewMonitor(p, time.Second, 50*time.Millisecond, logging.Nop())
	var fired int
	m.OnReconnect(func() { fired++ })

	ctx := context.Background()
	assert.False(t, m.Probe(ctx))
	assert.True(t, m.Probe(ctx))
	assert.True(t, m.Probe(ctx))
	assert.False(t, m.Probe(ctx))
	assert.True(t, m.Probe(ctx))

	assert.Equal(t, 2, fired)
	assert.Equal(t, 5, p.calls)
}

func TestMonitor_RunProbesUntilCancelled(t *testing.T) {
	p := &scriptedPinger{}
	m := NewMonitor(p, 10*time.Millisecond, 50*time.Millisecond, logging.Nop())
	var fired atomic.Int32
	m.OnReconnect(func() { fired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, m.IsOnline())
	assert.Equal(t, int32(1), fired.Load())
}
