package referee

import (
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/oracle"
	"github.com/st3v3nmw/schism/internal/scenario"
)

// Windows come back in client order: node1 first, node2 second.
func node1(windows []oracle.Window) []oracle.Window { return windows[:1] }
func node2(windows []oracle.Window) []oracle.Window { return windows[1:] }

// neighborRestart gracefully restarts node2 under load. node1 keeps the
// grant and keeps committing; node2 rejects everything until it is back and
// caught up.
func neighborRestart(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.Restart("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2"}},
		StopLoad: true,
	})

	r.Check("node1 commits while node2 restarts", r.Oracle.AssertCommits(node1(during)))
	r.Check("node2 rejects writes while down", r.Oracle.AssertNoCommits(node2(during)))
	r.Check("total balance conserved during the restart", r.Oracle.AssertIsolation(during))

	r.Check("both nodes commit after recovery", r.Oracle.AssertCommits(after))
	r.Check("total balance conserved after recovery", r.Oracle.AssertIsolation(after))

	r.Check("nodes converge after the restart",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}

// nodeCrash kills node2 without warning. Same verdicts as a graceful
// restart, plus no prepared transaction may survive the crash.
func nodeCrash(r *scenario.Run) {
	during, after := r.PerformFailure(nemesis.CrashRecover("node2"), scenario.Options{
		Waits:    []scenario.WaitCondition{{Node: "node2"}},
		StopLoad: true,
	})

	r.Check("node1 commits while node2 is dead", r.Oracle.AssertCommits(node1(during)))
	r.Check("node2 rejects writes while dead", r.Oracle.AssertNoCommits(node2(during)))
	r.Check("total balance conserved during the crash", r.Oracle.AssertIsolation(during))

	r.Check("both nodes commit after recovery", r.Oracle.AssertCommits(after))
	r.Check("total balance conserved after recovery", r.Oracle.AssertIsolation(after))

	r.Check("no transaction stays in-doubt after the crash",
		r.Oracle.AssertNoPrepared(r.Ctx(), r.Orc.Client("node2"), r.Timeouts.Convergence))
	r.Check("nodes converge after the crash",
		r.Oracle.AssertDataSync(r.Ctx(), r.Orc.Client("node1"), r.Orc.Client("node2"), r.Timeouts.Convergence))
}
