package ledger

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder()
	require.Equal(t, 0, r.Mark())

	seq := r.Begin(uuid.New(), "node1", 0, 1, 5)
	require.Equal(t, 0, seq)

	got := r.Get(seq)
	assert.Equal(t, OutcomePending, got.Outcome)
	assert.Equal(t, "node1", got.Node)
	assert.False(t, got.IssuedAt.IsZero())

	r.Resolve(seq, OutcomeCommitted)
	assert.Equal(t, OutcomeCommitted, r.Get(seq).Outcome)

	// Outcomes never regress once resolved.
	r.Resolve(seq, OutcomeRejected)
	assert.Equal(t, OutcomeCommitted, r.Get(seq).Outcome)
}

func TestRecorderReconcile(t *testing.T) {
	r := NewRecorder()

	unknown := r.Begin(uuid.New(), "node1", 0, 1, 5)
	r.Resolve(unknown, OutcomeUnknown)

	committed := r.Begin(uuid.New(), "node1", 1, 2, 5)
	r.Resolve(committed, OutcomeCommitted)

	// Only Unknown operations may be reconciled, and only to a terminal
	// outcome.
	r.Reconcile(committed, OutcomeRejected)
	assert.Equal(t, OutcomeCommitted, r.Get(committed).Outcome)

	r.Reconcile(unknown, OutcomeUnknown)
	assert.Equal(t, OutcomeUnknown, r.Get(unknown).Outcome)

	r.Reconcile(unknown, OutcomeCommitted)
	assert.Equal(t, OutcomeCommitted, r.Get(unknown).Outcome)
}

func TestRecorderWindows(t *testing.T) {
	r := NewRecorder()

	a := r.Begin(uuid.New(), "node1", 0, 1, 5)
	b := r.Begin(uuid.New(), "node2", 1, 2, 5)
	mark := r.Mark()
	c := r.Begin(uuid.New(), "node1", 2, 3, 5)

	r.Resolve(a, OutcomeCommitted)
	r.Resolve(b, OutcomeUnknown)
	r.Resolve(c, OutcomeCommitted)

	first := r.Window(0, mark, "node1")
	require.Len(t, first, 1)
	assert.Equal(t, a, first[0].Seq)

	second := r.Window(mark, r.Mark(), "node1")
	require.Len(t, second, 1)
	assert.Equal(t, c, second[0].Seq)

	assert.Empty(t, r.Window(mark, r.Mark(), "node2"))
	assert.Equal(t, []int{b}, r.Unresolved(0, r.Mark()))

	assert.Equal(t, 2, r.CommittedSince(0, "node1"))
	assert.Equal(t, 1, r.CommittedSince(mark, "node1"))
	assert.Equal(t, 0, r.CommittedSince(0, "node2"))
}

func TestRecorderConcurrentBegin(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seq := r.Begin(uuid.New(), "node1", 0, 1, 1)
				r.Resolve(seq, OutcomeCommitted)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 800, r.Len())
	seen := make(map[int]bool, 800)
	for seq := 0; seq < r.Len(); seq++ {
		op := r.Get(seq)
		assert.Equal(t, seq, op.Seq)
		assert.False(t, seen[op.Seq])
		seen[op.Seq] = true
	}
}
