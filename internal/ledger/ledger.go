// Package ledger holds the harness-side model of the bank under test: the
// account set with its conservation invariant, the append-only operation
// recorder, and point-in-time aggregate snapshots.
package ledger

import "fmt"

// Ledger models the account set. Transfers move value between accounts and
// never create or destroy it, so the total balance is constant for the
// lifetime of the ledger.
//
// Ledger is not synchronized; callers that share one across goroutines must
// serialize access themselves. The harness-side ledger is advisory only, the
// authority is always the database.
type Ledger struct {
	balances []int64
	total    int64
}

// NewLedger creates n accounts, each holding initial.
func NewLedger(n int, initial int64) *Ledger {
	balances := make([]int64, n)
	for i := range balances {
		balances[i] = initial
	}

	return &Ledger{balances: balances, total: int64(n) * initial}
}

// Accounts returns the number of accounts.
func (l *Ledger) Accounts() int {
	return len(l.balances)
}

// Total returns the invariant total balance.
func (l *Ledger) Total() int64 {
	return l.total
}

// Balance returns the balance of one account.
func (l *Ledger) Balance(id int) int64 {
	return l.balances[id]
}

// Apply replays a committed transfer against the model. It reports an error
// for out-of-range accounts or a transfer that drives the source negative;
// the transfer is applied either way so replay can continue.
func (l *Ledger) Apply(op Operation) error {
	if op.Source < 0 || op.Source >= len(l.balances) || op.Dest < 0 || op.Dest >= len(l.balances) {
		return fmt.Errorf("op %d: account pair (%d, %d) out of range", op.Seq, op.Source, op.Dest)
	}
	if op.Amount <= 0 {
		return fmt.Errorf("op %d: non-positive amount %d", op.Seq, op.Amount)
	}

	l.balances[op.Source] -= op.Amount
	l.balances[op.Dest] += op.Amount

	if l.balances[op.Source] < 0 {
		return fmt.Errorf("op %d: account %d overdrawn to %d", op.Seq, op.Source, l.balances[op.Source])
	}

	return nil
}
