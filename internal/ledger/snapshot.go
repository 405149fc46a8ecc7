package ledger

import "time"

// Snapshot is a point-in-time aggregate taken by querying one node directly.
// Snapshots are immutable once captured. Valid is false when the capture
// failed (e.g. the node was down at the scenario boundary).
type Snapshot struct {
	Node    string
	TakenAt time.Time

	TotalBalance int64
	RowCount     int64
	Prepared     int64
	Hash         string

	Valid bool
}

// HasUnresolvedPrepared reports whether the node retained two-phase-commit
// artifacts at capture time.
func (s Snapshot) HasUnresolvedPrepared() bool {
	return s.Prepared > 0
}
