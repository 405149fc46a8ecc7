package scenario

import (
	"fmt"
	"time"

	"github.com/st3v3nmw/schism/internal/cluster"
)

// Bootstrap brings the cluster to its initial healthy state: all containers
// up, both nodes online and caught up, referee reachable, schema seeded and
// replicated, workload flowing. Any failure here is a SetupFailure and aborts
// the suite.
func Bootstrap(r *Run) error {
	ctx := r.Ctx()

	for name, container := range r.Containers {
		if err := r.Runtime.Start(ctx, container); err != nil {
			return fmt.Errorf("%w: start %s: %v", ErrSetup, name, err)
		}
	}

	for _, c := range r.Orc.Clients() {
		if err := r.Orc.AwaitOnline(ctx, c.Name()); err != nil {
			return fmt.Errorf("%w: %v", ErrSetup, err)
		}
	}

	refereeUp := cluster.Eventually(ctx, func() bool {
		return r.Referee.Ping(ctx) == nil
	}, r.Timeouts.Online, 250*time.Millisecond)
	if !refereeUp {
		return fmt.Errorf("%w: referee not reachable within %s", ErrSetup, r.Timeouts.Online)
	}

	// Seed through one node; multi-master replication carries schema and
	// data to the peer. The sync check below doubles as the initial
	// replication barrier.
	clients := r.Orc.Clients()
	if err := clients[0].Setup(ctx, r.Workload.Accounts, r.Workload.InitialBalance); err != nil {
		return fmt.Errorf("%w: seed schema: %v", ErrSetup, err)
	}

	if err := r.Oracle.AssertDataSync(ctx, clients[0], clients[1], r.Timeouts.Convergence); err != nil {
		return fmt.Errorf("%w: initial replication: %v", ErrSetup, err)
	}

	if err := r.Orc.Prime(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSetup, err)
	}

	r.Orc.Generator().Start(ctx)
	return nil
}

// FinalChecks is the suite teardown: stop the workload, reconcile what is
// left, and require both nodes to have fully converged — identical row
// counts, identical content hashes, no unresolved prepared transactions.
func FinalChecks(r *Run) {
	ctx := r.Ctx()
	r.Orc.Generator().Stop(ctx)

	clients := r.Orc.Clients()
	r.Check("nodes converged after the full run",
		r.Oracle.AssertDataSync(ctx, clients[0], clients[1], r.Timeouts.Convergence))
}
