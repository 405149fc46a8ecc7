package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/logging"
)

// ErrTimeout marks a wait condition that was not met within its budget. A
// timed-out wait is fatal to the current scenario: the harness cannot make a
// trustworthy judgment, which is not the same as the system under test being
// broken.
var ErrTimeout = errors.New("wait condition timed out")

// Monitor polls nodes for readiness. Online means the node both accepts
// connections and advances at least one confirmed transaction, so a node that
// is reachable but stuck in recovery does not count.
type Monitor struct {
	pollInterval time.Duration
	probeTimeout time.Duration
	log          *zap.Logger
}

// NewMonitor creates a monitor with the given poll interval.
func NewMonitor(pollInterval time.Duration) *Monitor {
	return &Monitor{
		pollInterval: pollInterval,
		probeTimeout: 2 * time.Second,
		log:          logging.Named("monitor"),
	}
}

// AwaitOnline blocks until the node accepts connections and confirms a
// transaction, or the timeout expires.
func (m *Monitor) AwaitOnline(ctx context.Context, c Client, timeout time.Duration) error {
	m.log.Info("waiting for node to come online", zap.String("node", c.Name()))

	ok := Eventually(ctx, func() bool {
		pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()

		if err := c.Ping(pctx); err != nil {
			return false
		}

		_, err := c.Probe(pctx)
		return err == nil
	}, timeout, m.pollInterval)

	if !ok {
		return fmt.Errorf("node %s not online within %s: %w", c.Name(), timeout, ErrTimeout)
	}

	m.log.Info("node online", zap.String("node", c.Name()))
	return nil
}

// AwaitOffline blocks until the node stops accepting connections, or the
// timeout expires. Used to confirm a fault is actually in effect.
func (m *Monitor) AwaitOffline(ctx context.Context, c Client, timeout time.Duration) error {
	ok := Eventually(ctx, func() bool {
		pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()

		return c.Ping(pctx) != nil
	}, timeout, m.pollInterval)

	if !ok {
		return fmt.Errorf("node %s still reachable after %s: %w", c.Name(), timeout, ErrTimeout)
	}

	return nil
}
