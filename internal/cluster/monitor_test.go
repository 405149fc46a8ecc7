package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st3v3nmw/schism/internal/ledger"
)

// flakyNode is a Client whose reachability flips under test control.
type flakyNode struct {
	name string

	mu       sync.Mutex
	pingErr  error
	probeErr error
}

func (f *flakyNode) set(ping, probe error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = ping
	f.probeErr = probe
}

func (f *flakyNode) Name() string { return f.name }

func (f *flakyNode) Setup(ctx context.Context, accounts int, initial int64) error { return nil }

func (f *flakyNode) Transfer(ctx context.Context, id uuid.UUID, source, dest int, amount int64) error {
	return nil
}

func (f *flakyNode) HasTransfer(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (f *flakyNode) Aggregate(ctx context.Context) (ledger.Snapshot, error) {
	return ledger.Snapshot{Node: f.name, Valid: true}, nil
}

func (f *flakyNode) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *flakyNode) Probe(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return 42, nil
}

func (f *flakyNode) Close() {}

func TestAwaitOnline(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(10 * time.Millisecond)
	node := &flakyNode{name: "node1"}

	require.NoError(t, m.AwaitOnline(ctx, node, time.Second))
}

func TestAwaitOnlineReachableButStuck(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(10 * time.Millisecond)

	// Accepting connections is not online: the node must also confirm a
	// transaction.
	node := &flakyNode{name: "node1"}
	node.set(nil, errors.New("in recovery"))

	err := m.AwaitOnline(ctx, node, 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitOnlineRecovers(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(10 * time.Millisecond)

	node := &flakyNode{name: "node1"}
	node.set(errors.New("connection refused"), nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		node.set(nil, nil)
	}()

	require.NoError(t, m.AwaitOnline(ctx, node, time.Second))
}

func TestAwaitOffline(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(10 * time.Millisecond)

	node := &flakyNode{name: "node1"}
	node.set(errors.New("connection refused"), nil)
	require.NoError(t, m.AwaitOffline(ctx, node, time.Second))

	node.set(nil, nil)
	err := m.AwaitOffline(ctx, node, 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestEventually(t *testing.T) {
	ctx := context.Background()

	n := 0
	assert.True(t, Eventually(ctx, func() bool {
		n++
		return n >= 3
	}, time.Second, 10*time.Millisecond))

	assert.False(t, Eventually(ctx, func() bool { return false }, 100*time.Millisecond, 10*time.Millisecond))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, Eventually(cancelled, func() bool { return true }, time.Second, 10*time.Millisecond))
}
