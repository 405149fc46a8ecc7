// Package scenario sequences workload, fault injection, and recovery into
// failure scenarios and reports pass/fail per assertion.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/cluster"
	"github.com/st3v3nmw/schism/internal/ledger"
	"github.com/st3v3nmw/schism/internal/logging"
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/oracle"
	"github.com/st3v3nmw/schism/internal/workload"
)

// ErrSetup marks a cluster that never reached its initial healthy state.
// Setup failures abort the whole suite.
var ErrSetup = errors.New("cluster setup failed")

// Timeouts are the wait budgets for one scenario run.
type Timeouts struct {
	// Online bounds awaitOnline-style readiness waits.
	Online time.Duration
	// Convergence bounds data-sync and grant-clearing polls.
	Convergence time.Duration
	// FailureWindow is how long load runs while the fault is in effect.
	FailureWindow time.Duration
	// RecoveryWindow is how long load runs after recovery before the second
	// capture.
	RecoveryWindow time.Duration
	// Snapshot bounds a single aggregate capture.
	Snapshot time.Duration
}

// WaitCondition is an explicit recovery gate, keyed by node. With MinCommits
// zero it is an awaitOnline wait; with MinCommits > 0 it additionally
// requires that many newly committed operations on the node, asserting the
// node resumed accepting writes rather than merely answering TCP.
type WaitCondition struct {
	Node       string
	MinCommits int
	Timeout    time.Duration
}

// Options tune one PerformFailure call.
type Options struct {
	Waits []WaitCondition
	// StopLoad pauses issuance around snapshot capture so the aggregates are
	// clean rather than moving.
	StopLoad bool
}

// Orchestrator is the single sequential control flow of a scenario run. The
// workload runs concurrently underneath it; the orchestrator only blocks on
// nemesis apply/clear, readiness waits, and workload drains.
type Orchestrator struct {
	gen      *workload.Generator
	rec      *ledger.Recorder
	nem      *nemesis.Controller
	mon      *cluster.Monitor
	clients  []cluster.Client
	timeouts Timeouts
	log      *zap.Logger

	// lastMark and lastSnap make consecutive windows contiguous: every
	// recorded operation lands in exactly one window, which the oracle's
	// replay depends on.
	lastMark int
	lastSnap map[string]ledger.Snapshot
}

// NewOrchestrator wires the orchestrator. Client order defines window order
// in PerformFailure results.
func NewOrchestrator(gen *workload.Generator, nem *nemesis.Controller, mon *cluster.Monitor,
	clients []cluster.Client, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		gen:      gen,
		rec:      gen.Recorder(),
		nem:      nem,
		mon:      mon,
		clients:  clients,
		timeouts: timeouts,
		log:      logging.Named("scenario"),
		lastSnap: make(map[string]ledger.Snapshot),
	}
}

// Generator exposes the workload generator for suite setup/teardown.
func (o *Orchestrator) Generator() *workload.Generator {
	return o.gen
}

// Clients returns the node clients in window order.
func (o *Orchestrator) Clients() []cluster.Client {
	return o.clients
}

// Client returns the client for a node, or nil.
func (o *Orchestrator) Client(node string) cluster.Client {
	for _, c := range o.clients {
		if c.Name() == node {
			return c
		}
	}
	return nil
}

// Prime captures the initial per-node snapshots and window mark. Call once
// after setup, before the first PerformFailure.
func (o *Orchestrator) Prime(ctx context.Context) error {
	for _, c := range o.clients {
		snap, err := o.snapshot(ctx, c)
		if err != nil {
			return fmt.Errorf("initial snapshot of %s: %w", c.Name(), err)
		}
		o.lastSnap[c.Name()] = snap
	}

	o.lastMark = o.rec.Mark()
	return nil
}

// PerformFailure runs one failure scenario step: apply the action under load,
// capture the during-failure windows, clear the action, satisfy the wait
// conditions, and capture the after-recovery windows. Windows come back in
// client order with Unknown outcomes already reconciled.
//
// A wait condition that times out fails the whole step: without confirmed
// recovery any verdict would be misleading.
func (o *Orchestrator) PerformFailure(ctx context.Context, action nemesis.Action, opts Options) (during, after []oracle.Window, err error) {
	o.log.Info("performing failure", zap.String("action", action.String()))

	// (1) workload must be flowing before the fault lands
	o.gen.Start(ctx)

	// (2) fault in effect, confirmed
	if err := o.nem.Apply(ctx, action); err != nil {
		return nil, nil, err
	}

	// Process faults are additionally confirmed at the database level: the
	// node must stop accepting connections, not merely have its container
	// reported down. Partitions keep the server process alive, so the
	// network-detach check in Apply is the confirmation there.
	switch action.Kind {
	case nemesis.StopNode, nemesis.RestartNode, nemesis.CrashRecoverNode:
		c := o.Client(action.Node)
		if c == nil {
			return nil, nil, fmt.Errorf("unknown node %q", action.Node)
		}
		if err := o.mon.AwaitOffline(ctx, c, o.timeouts.Online); err != nil {
			return nil, nil, err
		}
	}

	// (3) during-failure window
	sleepCtx(ctx, o.timeouts.FailureWindow)
	if opts.StopLoad {
		o.gen.Pause()
	}
	duringFrom := o.lastMark
	during, duringTo := o.capture(ctx)

	// (4) fault cleared; recovery readiness is waited on explicitly below
	if err := o.nem.Clear(ctx, action); err != nil {
		return nil, nil, err
	}
	if opts.StopLoad {
		o.gen.Resume()
	}

	// (5) explicit recovery gates
	for _, wc := range opts.Waits {
		if err := o.await(ctx, wc, duringTo); err != nil {
			return nil, nil, err
		}
		o.nem.MarkHealthy(wc.Node)
	}

	// (6) after-recovery window
	sleepCtx(ctx, o.timeouts.RecoveryWindow)
	if opts.StopLoad {
		o.gen.Pause()
	}
	after, afterTo := o.capture(ctx)
	if opts.StopLoad {
		o.gen.Resume()
	}

	// Unknown outcomes are resolved before any assertion sees the windows.
	o.gen.Reconcile(ctx)

	for i, c := range o.clients {
		during[i].Ops = o.rec.Window(duringFrom, duringTo, c.Name())
		after[i].Ops = o.rec.Window(duringTo, afterTo, c.Name())
	}

	o.log.Info("failure step complete",
		zap.String("action", action.String()),
		zap.Int("during_ops", duringTo-duringFrom),
		zap.Int("after_ops", afterTo-duringTo))

	return during, after, nil
}

// AwaitOnline blocks until the node is online and caught up, for scenarios
// that stage containers directly.
func (o *Orchestrator) AwaitOnline(ctx context.Context, node string) error {
	c := o.Client(node)
	if c == nil {
		return fmt.Errorf("unknown node %q", node)
	}

	if err := o.mon.AwaitOnline(ctx, c, o.timeouts.Online); err != nil {
		return err
	}

	o.nem.MarkHealthy(node)
	return nil
}

func (o *Orchestrator) await(ctx context.Context, wc WaitCondition, mark int) error {
	timeout := wc.Timeout
	if timeout == 0 {
		timeout = o.timeouts.Online
	}

	c := o.Client(wc.Node)
	if c == nil {
		return fmt.Errorf("unknown node %q in wait condition", wc.Node)
	}

	if wc.MinCommits <= 0 {
		return o.mon.AwaitOnline(ctx, c, timeout)
	}

	ok := cluster.Eventually(ctx, func() bool {
		return o.rec.CommittedSince(mark, wc.Node) >= wc.MinCommits
	}, timeout, 200*time.Millisecond)
	if !ok {
		return fmt.Errorf("node %s did not commit %d operations within %s: %w",
			wc.Node, wc.MinCommits, timeout, cluster.ErrTimeout)
	}

	return nil
}

// capture takes one aggregate snapshot per node and closes the current
// window. Snapshot failures are expected for degraded nodes and produce an
// invalid snapshot rather than an error.
func (o *Orchestrator) capture(ctx context.Context) ([]oracle.Window, int) {
	mark := o.rec.Mark()

	windows := make([]oracle.Window, 0, len(o.clients))
	for _, c := range o.clients {
		before := o.lastSnap[c.Name()]

		snap, err := o.snapshot(ctx, c)
		if err != nil {
			o.log.Debug("snapshot unavailable", zap.String("node", c.Name()), zap.Error(err))
			snap = ledger.Snapshot{Node: c.Name()}
		} else {
			o.lastSnap[c.Name()] = snap
		}

		windows = append(windows, oracle.Window{Node: c.Name(), Before: before, After: snap})
	}

	o.lastMark = mark
	return windows, mark
}

func (o *Orchestrator) snapshot(ctx context.Context, c cluster.Client) (ledger.Snapshot, error) {
	sctx, cancel := context.WithTimeout(ctx, o.timeouts.Snapshot)
	defer cancel()

	return c.Aggregate(sctx)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
