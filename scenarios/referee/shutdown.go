package referee

import (
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/scenario"
)

// consequentShutdown takes the whole cluster down piece by piece (loser,
// then winner, then referee) and brings it back in the worst order. The
// loser alone must never serve; once the winner returns both nodes recover
// even before the referee does.
func consequentShutdown(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Stop("node1"), scenario.Options{StopLoad: true})

	r.Check("node1 rejects writes once stopped", r.Oracle.AssertNoCommits(node1(during)))
	r.Check("node2 commits with the grant", r.Oracle.AssertCommits(node2(during)))
	r.Check("node2 keeps committing", r.Oracle.AssertCommits(node2(after)))

	during, after = r.PerformFailure(nemesis.Stop("node2"), scenario.Options{StopLoad: true})

	r.Check("nothing commits with both nodes down", r.Oracle.AssertNoCommits(during))
	r.Check("nothing commits while both stay down", r.Oracle.AssertNoCommits(after))

	r.StopContainer("referee")

	// Only the loser comes back: the saved decision names node2, so node1
	// must refuse to serve alone.
	r.StartContainer("node1")

	during, after = r.PerformFailure(nemesis.None(), scenario.Options{StopLoad: true})

	r.Check("loser alone cannot serve", r.Oracle.AssertNoCommits(during))
	r.Check("loser alone still cannot serve", r.Oracle.AssertNoCommits(after))

	// Winner back: the nodes see each other and recover without the referee.
	r.PauseLoad()
	r.StartContainer("node2")
	r.AwaitOnline("node2")
	r.AwaitOnline("node1")
	r.ResumeLoad()

	during, after = r.PerformFailure(nemesis.None(), scenario.Options{StopLoad: true})

	r.Check("both nodes commit once the winner returns", r.Oracle.AssertCommits(during))
	r.Check("both nodes keep committing", r.Oracle.AssertCommits(after))
	r.Check("total balance conserved through the full outage", r.Oracle.AssertIsolation(after))

	r.StartContainer("referee")

	r.Check("grant cleared once the referee returns",
		r.Oracle.AssertGrantCleared(r.Ctx(), r.Referee, r.Timeouts.Convergence))
	r.Check("nodes converge after the full outage",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}
