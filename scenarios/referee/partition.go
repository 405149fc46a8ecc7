package referee

import (
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/scenario"
)

// partition cuts node2 off from both its peer and the referee. node1 wins
// the grant and keeps serving; node2 must stop committing even though its
// own process is healthy.
func partition(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Partition("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2"}},
		StopLoad: true,
	})

	r.Check("node1 commits while node2 is isolated", r.Oracle.AssertCommits(node1(during)))
	r.Check("node2 rejects writes while isolated", r.Oracle.AssertNoCommits(node2(during)))
	r.Check("total balance conserved during the partition", r.Oracle.AssertIsolation(during))

	r.Check("both nodes commit after the partition heals", r.Oracle.AssertCommits(after))
	r.Check("total balance conserved after the partition heals", r.Oracle.AssertIsolation(after))

	r.Check("nodes converge after the partition",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
	r.Check("referee grant is cleared once both nodes are healthy",
		r.Oracle.AssertGrantCleared(r.Ctx(), r.Referee, r.Timeouts.Convergence))
}

// doubleFailure partitions node2, heals it, then partitions node1. The
// second partition must flip the winner: the referee hands the grant to
// whichever node can still reach it.
func doubleFailure(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Partition("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2"}},
		StopLoad: true,
	})

	r.Check("node1 commits during the first partition", r.Oracle.AssertCommits(node1(during)))
	r.Check("node2 rejects writes during the first partition", r.Oracle.AssertNoCommits(node2(during)))
	r.Check("both nodes commit after the first partition heals", r.Oracle.AssertCommits(after))

	r.Check("grant is cleared before the second partition",
		r.Oracle.AssertGrantCleared(r.Ctx(), r.Referee, r.Timeouts.Convergence))

	during, after = r.PerformFailure(nemesis.Partition("node1"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node1"}},
		StopLoad: true,
	})

	r.Check("node2 commits during the second partition", r.Oracle.AssertCommits(node2(during)))
	r.Check("node1 rejects writes during the second partition", r.Oracle.AssertNoCommits(node1(during)))
	r.Check("total balance conserved across both partitions", r.Oracle.AssertIsolation(during))

	r.Check("both nodes commit after the second partition heals", r.Oracle.AssertCommits(after))
	r.Check("nodes converge after both partitions",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}
