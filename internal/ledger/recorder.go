package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder is the append-only log of transfer attempts. Appends happen under
// concurrent writers (the workload workers), so the log preserves issuance
// order per generator instance via the sequence number handed out by Begin.
type Recorder struct {
	mu  sync.Mutex
	ops []Operation
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{ops: make([]Operation, 0, 1024)}
}

// Begin appends a pending operation before the network call is made and
// returns its sequence number.
func (r *Recorder) Begin(id uuid.UUID, node string, source, dest int, amount int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := len(r.ops)
	r.ops = append(r.ops, Operation{
		ID:       id,
		Seq:      seq,
		Source:   source,
		Dest:     dest,
		Amount:   amount,
		Node:     node,
		IssuedAt: time.Now(),
		Outcome:  OutcomePending,
	})

	return seq
}

// Resolve records the observed outcome of a pending operation. Resolving an
// operation that is not pending is ignored: outcomes never regress.
func (r *Recorder) Resolve(seq int, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ops[seq].Outcome != OutcomePending {
		return
	}

	r.ops[seq].Outcome = outcome
	r.ops[seq].ObservedAt = time.Now()
}

// Reconcile moves an operation from Unknown to its true outcome, determined
// by querying the node for the operation's eventual presence. This is the
// single permitted outcome update after resolution.
func (r *Recorder) Reconcile(seq int, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ops[seq].Outcome != OutcomeUnknown {
		return
	}
	if outcome != OutcomeCommitted && outcome != OutcomeRejected {
		return
	}

	r.ops[seq].Outcome = outcome
	r.ops[seq].ObservedAt = time.Now()
}

// Mark returns the current end of the log, used as a window boundary.
func (r *Recorder) Mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.ops)
}

// Window returns a copy of the operations in [from, to) that targeted node.
func (r *Recorder) Window(from, to int, node string) []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	to = min(to, len(r.ops))
	window := make([]Operation, 0)
	for _, op := range r.ops[from:to] {
		if op.Node == node {
			window = append(window, op)
		}
	}

	return window
}

// Unresolved returns the sequence numbers of operations in [from, to) whose
// outcome is still Unknown.
func (r *Recorder) Unresolved(from, to int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	to = min(to, len(r.ops))
	seqs := make([]int, 0)
	for _, op := range r.ops[from:to] {
		if op.Outcome == OutcomeUnknown {
			seqs = append(seqs, op.Seq)
		}
	}

	return seqs
}

// Get returns a copy of one operation.
func (r *Recorder) Get(seq int) Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ops[seq]
}

// Len returns the number of recorded operations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.ops)
}

// CommittedSince counts operations committed against node at or after mark.
// Used by the stronger awaitCommitted readiness gate.
func (r *Recorder) CommittedSince(mark int, node string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, op := range r.ops[min(mark, len(r.ops)):] {
		if op.Node == node && op.Outcome == OutcomeCommitted {
			n++
		}
	}

	return n
}
