// Package cluster provides database connectivity to the replicated nodes and
// the referee, plus the health monitor used for readiness gating.
package cluster

import (
	"context"

	"github.com/google/uuid"

	"github.com/st3v3nmw/schism/internal/ledger"
)

// Client is the per-node database surface the harness consumes. The
// production implementation is Node (pgx); tests substitute fakes.
type Client interface {
	// Name returns the node identifier ("node1", "node2").
	Name() string

	// Setup creates the bank schema and seeds n accounts with the initial
	// balance. It is idempotent and resets any previous data.
	Setup(ctx context.Context, accounts int, initial int64) error

	// Transfer executes one funds transfer as a single transaction.
	Transfer(ctx context.Context, id uuid.UUID, source, dest int, amount int64) error

	// HasTransfer reports whether the transfer with the given id is present,
	// i.e. whether it eventually committed. Used to reconcile Unknown outcomes.
	HasTransfer(ctx context.Context, id uuid.UUID) (bool, error)

	// Aggregate captures a point-in-time snapshot: total balance, row count,
	// unresolved prepared transactions, and a content hash of the accounts.
	Aggregate(ctx context.Context) (ledger.Snapshot, error)

	// Ping reports whether the node accepts connections.
	Ping(ctx context.Context) error

	// Probe runs one confirmed transaction and returns its id, proving the
	// node is advancing, not merely reachable.
	Probe(ctx context.Context) (int64, error)

	// Close releases the underlying connections.
	Close()
}
