// Package referee holds the failure scenarios for a two-node multi-master
// cluster arbitrated by a referee. Scenarios register in a deliberate order:
// they share cluster state, including which node currently holds the grant.
package referee

import "github.com/st3v3nmw/schism/internal/scenario"

func init() {
	scenario.Register("neighbor-restart", "Neighbor restart under load", neighborRestart)
	scenario.Register("node-crash", "Abrupt node crash and recovery", nodeCrash)
	scenario.Register("partition", "Single-node partition from peer and referee", partition)
	scenario.Register("double-failure", "Consecutive partitions flip the winner", doubleFailure)
	scenario.Register("saved-decision", "Winner restart honors the saved grant", savedDecision)
	scenario.Register("winner-restart", "Winner restarts while the loser is down", winnerRestart)
	scenario.Register("winner-crash", "Winner crashes while the loser is down", winnerCrash)
	scenario.Register("consequent-shutdown", "Staged shutdown and recovery of everything", consequentShutdown)
}
