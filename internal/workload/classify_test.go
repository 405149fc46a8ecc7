package workload

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/st3v3nmw/schism/internal/ledger"
)

type notSentError struct{}

func (notSentError) Error() string     { return "request never sent" }
func (notSentError) SafeToRetry() bool { return true }

func TestClassify(t *testing.T) {
	assert.Equal(t, ledger.OutcomeCommitted, classify(nil))

	// A server-reported SQL error means the node processed and refused it.
	pgErr := &pgconn.PgError{Code: "23514", Message: "check constraint violated"}
	assert.Equal(t, ledger.OutcomeRejected, classify(pgErr))
	assert.Equal(t, ledger.OutcomeRejected, classify(fmt.Errorf("transfer: %w", pgErr)))

	// An error raised before the request went out cannot have committed.
	assert.Equal(t, ledger.OutcomeRejected, classify(notSentError{}))

	// Anything else is a connection lost mid-flight: the commit may have
	// happened, so the outcome must be reconciled, never assumed.
	assert.Equal(t, ledger.OutcomeUnknown, classify(errors.New("unexpected EOF")))
	assert.Equal(t, ledger.OutcomeUnknown, classify(errors.New("broken pipe")))
}
