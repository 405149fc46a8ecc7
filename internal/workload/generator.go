// Package workload issues a continuous stream of randomized transfer
// operations against the replicated nodes, recording every attempt.
package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/cluster"
	"github.com/st3v3nmw/schism/internal/ledger"
	"github.com/st3v3nmw/schism/internal/logging"
)

// Config tunes the generator.
type Config struct {
	// Workers is the number of concurrent issuing goroutines.
	Workers int
	// Accounts is the size of the account set.
	Accounts int
	// InitialBalance is the per-account starting balance.
	InitialBalance int64
	// MaxAmount bounds the random transfer amount.
	MaxAmount int64
	// OpTimeout bounds a single transfer attempt.
	OpTimeout time.Duration
}

// Generator drives the concurrent transfer workload. Issuance runs in
// background goroutines and never blocks the orchestrator; the orchestrator
// observes it only through the recorder.
type Generator struct {
	clients []cluster.Client
	rec     *ledger.Recorder
	cfg     Config
	log     *zap.Logger

	// advisory tracks balances from the issuer's point of view, so generated
	// amounts never exceed the source balance as the issuer knows it. The
	// database is the authority; this needs no precision, just validity.
	advisory   *ledger.Ledger
	advisoryMu sync.Mutex

	mu       sync.Mutex
	running  bool
	paused   bool
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	inflight sync.WaitGroup
}

// New creates a generator targeting the given nodes.
func New(clients []cluster.Client, rec *ledger.Recorder, cfg Config) *Generator {
	return &Generator{
		clients:  clients,
		rec:      rec,
		cfg:      cfg,
		log:      logging.Named("workload"),
		advisory: ledger.NewLedger(cfg.Accounts, cfg.InitialBalance),
	}
}

// Recorder returns the operation log fed by this generator.
func (g *Generator) Recorder() *ledger.Recorder {
	return g.rec
}

// Running reports whether issuance loops are active.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.running
}

// Start launches the worker goroutines. It is a no-op if already running.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}

	// Workers outlive the caller's deadline; Stop is the only way down.
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel
	g.running = true
	g.paused = false

	for i := 0; i < g.cfg.Workers; i++ {
		g.workers.Add(1)
		go func() {
			defer g.workers.Done()
			g.loop(wctx)
		}()
	}

	g.log.Info("workload started", zap.Int("workers", g.cfg.Workers))
}

// Pause halts issuance and blocks until in-flight operations are resolved,
// so snapshots taken afterwards are clean rather than moving.
func (g *Generator) Pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()

	g.inflight.Wait()
}

// Resume restarts issuance after a Pause.
func (g *Generator) Resume() {
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
}

// Stop halts issuance, drains in-flight operations, and reconciles any
// Unknown outcomes that are still reachable.
func (g *Generator) Stop(ctx context.Context) {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.paused = true
	g.mu.Unlock()

	g.inflight.Wait()
	g.cancel()
	g.workers.Wait()

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.Reconcile(ctx)
	g.log.Info("workload stopped", zap.Int("operations", g.rec.Len()))
}

// Snapshot captures an aggregate snapshot from one node without stopping
// issuance.
func (g *Generator) Snapshot(ctx context.Context, node string) (ledger.Snapshot, error) {
	c := g.client(node)
	if c == nil {
		return ledger.Snapshot{}, fmt.Errorf("unknown node %q", node)
	}

	return c.Aggregate(ctx)
}

// Reconcile resolves Unknown outcomes by querying each operation's target
// node for the transfer's eventual presence. Nodes that are unreachable leave
// their operations Unknown; a later pass can retry.
func (g *Generator) Reconcile(ctx context.Context) {
	seqs := g.rec.Unresolved(0, g.rec.Len())
	if len(seqs) == 0 {
		return
	}

	g.log.Info("reconciling unknown outcomes", zap.Int("count", len(seqs)))

	for _, seq := range seqs {
		op := g.rec.Get(seq)
		c := g.client(op.Node)
		if c == nil {
			continue
		}

		qctx, cancel := context.WithTimeout(ctx, g.cfg.OpTimeout)
		exists, err := c.HasTransfer(qctx, op.ID)
		cancel()
		if err != nil {
			g.log.Debug("reconciliation probe failed",
				zap.Int("seq", seq), zap.String("node", op.Node), zap.Error(err))
			continue
		}

		if exists {
			g.rec.Reconcile(seq, ledger.OutcomeCommitted)
		} else {
			g.rec.Reconcile(seq, ledger.OutcomeRejected)
		}
	}
}

func (g *Generator) client(node string) cluster.Client {
	for _, c := range g.clients {
		if c.Name() == node {
			return c
		}
	}
	return nil
}

func (g *Generator) loop(ctx context.Context) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !g.enter() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		g.issue(ctx, rng)
		g.inflight.Done()
	}
}

// enter registers an in-flight operation unless issuance is paused. The
// in-flight count is adjusted under the same lock as the pause flag so Pause
// cannot miss an attempt that is about to start.
func (g *Generator) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return false
	}

	g.inflight.Add(1)
	return true
}

func (g *Generator) issue(ctx context.Context, rng *rand.Rand) {
	c := g.clients[rng.IntN(len(g.clients))]

	source := rng.IntN(g.cfg.Accounts)
	dest := rng.IntN(g.cfg.Accounts - 1)
	if dest >= source {
		dest++
	}

	amount := 1 + rng.Int64N(g.cfg.MaxAmount)
	g.advisoryMu.Lock()
	if bal := g.advisory.Balance(source); bal < amount {
		amount = bal
	}
	g.advisoryMu.Unlock()
	if amount <= 0 {
		return
	}

	seq := g.rec.Begin(uuid.New(), c.Name(), source, dest, amount)

	// An attempt already sent is allowed to complete even while stopping:
	// the timeout bounds it, cancellation does not abort it. Its outcome is
	// required for the conservation check.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.OpTimeout)
	err := c.Transfer(tctx, g.rec.Get(seq).ID, source, dest, amount)
	cancel()

	outcome := classify(err)
	g.rec.Resolve(seq, outcome)

	if outcome == ledger.OutcomeCommitted {
		g.advisoryMu.Lock()
		_ = g.advisory.Apply(g.rec.Get(seq))
		g.advisoryMu.Unlock()
	}
}
