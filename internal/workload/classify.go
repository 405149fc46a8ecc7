package workload

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/st3v3nmw/schism/internal/ledger"
)

// classify maps a transfer error to an outcome.
//
// A server-reported SQL error means the node processed and refused the
// transfer. An error that provably occurred before the request was sent
// (pgconn.SafeToRetry) cannot have committed either. Anything else is a
// connection lost mid-flight: the commit may or may not have happened, so the
// outcome is Unknown and must be reconciled, never assumed Rejected. Treating
// it as rejected would hide a commit that succeeded without the harness
// seeing the acknowledgment.
func classify(err error) ledger.Outcome {
	if err == nil {
		return ledger.OutcomeCommitted
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ledger.OutcomeRejected
	}

	if pgconn.SafeToRetry(err) {
		return ledger.OutcomeRejected
	}

	return ledger.OutcomeUnknown
}
