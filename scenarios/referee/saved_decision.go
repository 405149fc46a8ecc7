package referee

import (
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/scenario"
)

// savedDecision checks that the referee's decision outlives the referee
// itself. node2 wins the grant, the referee goes away, and node2 must still
// be able to restart and serve from the saved decision while node1 stays
// locked out.
func savedDecision(r *scenario.Run) {
	// node1 goes away for the whole scenario; node2 takes the grant.
	during, after := r.PerformFailure(nemesis.Stop("node1"), scenario.Options{StopLoad: true})

	r.Check("node1 rejects writes once stopped", r.Oracle.AssertNoCommits(node1(during)))
	r.Check("node2 commits with the grant", r.Oracle.AssertCommits(node2(during)))
	r.Check("node1 still rejects writes", r.Oracle.AssertNoCommits(node1(after)))
	r.Check("node2 still commits", r.Oracle.AssertCommits(node2(after)))
	r.Check("total balance conserved with node1 down", r.Oracle.AssertIsolation(after))

	// Referee offline: the winner restarts on its saved decision alone.
	r.StopContainer("referee")

	during, after = r.PerformFailure(nemesis.Restart("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2", MinCommits: 1}},
		StopLoad: true,
	})

	r.Check("nothing commits while the winner restarts", r.Oracle.AssertNoCommits(during))
	r.Check("node1 stays locked out", r.Oracle.AssertNoCommits(node1(after)))
	r.Check("node2 serves again from the saved decision", r.Oracle.AssertCommits(node2(after)))

	// Loser up, winner down, referee down: the loser must not steal the
	// grant just because nobody answers.
	r.StopContainer("node2")
	r.StartContainer("node1")

	during, after = r.PerformFailure(nemesis.None(), scenario.Options{StopLoad: true})

	r.Check("loser cannot serve without the referee", r.Oracle.AssertNoCommits(during))
	r.Check("loser still cannot serve", r.Oracle.AssertNoCommits(after))

	// Referee back: the saved decision still names node2, so node1 stays out.
	r.StartContainer("referee")

	during, after = r.PerformFailure(nemesis.None(), scenario.Options{StopLoad: true})

	r.Check("loser stays locked out by the saved decision", r.Oracle.AssertNoCommits(during))
	r.Check("loser stays locked out after the referee returns", r.Oracle.AssertNoCommits(after))

	// Restore the winner; with both nodes healthy the decision is cleared.
	r.PauseLoad()
	r.StartContainer("node2")
	r.AwaitOnline("node2")
	r.AwaitOnline("node1")
	r.ResumeLoad()

	r.Check("saved decision cleared once both nodes recover",
		r.Oracle.AssertGrantCleared(r.Ctx(), r.Referee, r.Timeouts.Convergence))
	r.Check("nodes converge after full recovery",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}
