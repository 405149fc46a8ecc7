package referee

import (
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/scenario"
)

// winnerRestart stops node1 so node2 wins the grant, then gracefully
// restarts node2 while node1 is still down. The winner must reclaim its own
// grant from the referee and resume; the cluster is unavailable only while
// the winner itself is down.
func winnerRestart(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Stop("node1"), scenario.Options{StopLoad: true})

	r.Check("node1 rejects writes once stopped", r.Oracle.AssertNoCommits(node1(during)))
	r.Check("node2 commits with the grant", r.Oracle.AssertCommits(node2(during)))
	r.Check("node2 keeps committing", r.Oracle.AssertCommits(node2(after)))

	during, after = r.PerformFailure(nemesis.Restart("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2", MinCommits: 1}},
		StopLoad: true,
	})

	r.Check("nothing commits while the winner restarts", r.Oracle.AssertNoCommits(during))
	r.Check("node1 stays locked out", r.Oracle.AssertNoCommits(node1(after)))
	r.Check("winner reclaims its grant and serves", r.Oracle.AssertCommits(node2(after)))
	r.Check("total balance conserved through the winner restart", r.Oracle.AssertIsolation(after))

	restoreLoser(r)
}

// winnerCrash is winnerRestart with a hard kill instead of a graceful stop.
// The reclaimed grant must cover transactions that were in flight at the
// moment of the crash.
func winnerCrash(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Stop("node1"), scenario.Options{StopLoad: true})

	r.Check("node1 rejects writes once stopped", r.Oracle.AssertNoCommits(node1(during)))
	r.Check("node2 commits with the grant", r.Oracle.AssertCommits(node2(during)))
	r.Check("node2 keeps committing", r.Oracle.AssertCommits(node2(after)))

	during, after = r.PerformFailure(nemesis.CrashRecover("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2", MinCommits: 1}},
		StopLoad: true,
	})

	r.Check("nothing commits while the winner is dead", r.Oracle.AssertNoCommits(during))
	r.Check("node1 stays locked out", r.Oracle.AssertNoCommits(node1(after)))
	r.Check("winner reclaims its grant and serves", r.Oracle.AssertCommits(node2(after)))
	r.Check("no transaction stays in-doubt after the winner crash",
		r.Oracle.AssertNoPrepared(r.Ctx(), r.Orc.Client("node2"), r.Timeouts.Convergence))
	r.Check("total balance conserved through the winner crash", r.Oracle.AssertIsolation(after))

	restoreLoser(r)
}

// restoreLoser brings node1 back and waits for both the data and the grant
// to settle, leaving the cluster clean for the next scenario.
func restoreLoser(r *scenario.Run) {
	r.PauseLoad()
	r.StartContainer("node1")
	r.AwaitOnline("node1")
	r.ResumeLoad()

	r.Check("grant cleared after the loser returns",
		r.Oracle.AssertGrantCleared(r.Ctx(), r.Referee, r.Timeouts.Convergence))
	r.Check("nodes converge after the loser returns",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}
