package oracle

import "github.com/st3v3nmw/schism/internal/ledger"

// Window is one node's view of a scenario phase: the snapshot pair bracketing
// the phase and the operations issued against the node inside it, with
// outcomes already reconciled.
type Window struct {
	Node   string
	Before ledger.Snapshot
	After  ledger.Snapshot
	Ops    []ledger.Operation
}

// Committed returns the operations in the window that resolved to Committed.
func (w Window) Committed() []ledger.Operation {
	committed := make([]ledger.Operation, 0, len(w.Ops))
	for _, op := range w.Ops {
		if op.Outcome == ledger.OutcomeCommitted {
			committed = append(committed, op)
		}
	}

	return committed
}

// Commits counts the committed operations in the window.
func (w Window) Commits() int {
	return len(w.Committed())
}
