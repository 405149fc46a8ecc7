package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the resolution of a transfer attempt.
type Outcome uint8

const (
	// OutcomePending: the attempt has been recorded but not yet resolved.
	OutcomePending Outcome = iota
	// OutcomeCommitted: the target node acknowledged the commit.
	OutcomeCommitted
	// OutcomeRejected: the target node refused the transfer, or the request
	// provably never reached it.
	OutcomeRejected
	// OutcomeUnknown: connectivity was lost mid-commit. The operation must be
	// reconciled against the node's eventual state, never guessed.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCommitted:
		return "committed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Operation is a single recorded transfer attempt. Operations are immutable
// once recorded; only the Outcome may change, and only through the recorder.
type Operation struct {
	ID     uuid.UUID
	Seq    int
	Source int
	Dest   int
	Amount int64
	Node   string

	IssuedAt   time.Time
	Outcome    Outcome
	ObservedAt time.Time
}
