package oracle

import (
	"fmt"
	"strings"

	"github.com/st3v3nmw/schism/internal/ledger"
)

// maxReportedOps caps how many offending operations a violation prints.
const maxReportedOps = 8

// Violation is the only failure mode that points at a real bug in the system
// under test. It carries the offending operations and snapshots so the
// failure can be diagnosed and reproduced.
type Violation struct {
	Assertion string
	Detail    string
	Ops       []ledger.Operation
	Snapshots []ledger.Snapshot
}

func (v *Violation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", v.Assertion, v.Detail)

	if len(v.Ops) > 0 {
		fmt.Fprintf(&b, "\n  offending operations (%d):", len(v.Ops))
		for i, op := range v.Ops {
			if i == maxReportedOps {
				fmt.Fprintf(&b, "\n    ... and %d more", len(v.Ops)-maxReportedOps)
				break
			}
			fmt.Fprintf(&b, "\n    #%d %s %d -> %d amount=%d node=%s outcome=%s",
				op.Seq, op.ID, op.Source, op.Dest, op.Amount, op.Node, op.Outcome)
		}
	}

	for _, s := range v.Snapshots {
		if !s.Valid {
			fmt.Fprintf(&b, "\n  snapshot %s: <not captured>", s.Node)
			continue
		}
		fmt.Fprintf(&b, "\n  snapshot %s: total=%d rows=%d prepared=%d hash=%s",
			s.Node, s.TotalBalance, s.RowCount, s.Prepared, s.Hash)
	}

	return b.String()
}

func violation(assertion, format string, args ...any) *Violation {
	return &Violation{Assertion: assertion, Detail: fmt.Sprintf(format, args...)}
}
