package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuitePasses(t *testing.T) {
	ran := []string{}
	suite := NewSuite().
		Setup(func(r *Run) error { ran = append(ran, "setup"); return nil }).
		Teardown(func(r *Run) { ran = append(ran, "teardown") }).
		Add(
			&Scenario{Key: "a", Name: "A", Fn: func(r *Run) {
				ran = append(ran, "a")
				r.Check("fine", nil)
			}},
			&Scenario{Key: "b", Name: "B", Fn: func(r *Run) {
				ran = append(ran, "b")
			}},
		)

	r := &Run{}
	assert.True(t, suite.Run(context.Background(), r))
	assert.Equal(t, []string{"setup", "a", "b", "teardown"}, ran)
	assert.Equal(t, 1, r.checks)
	assert.Equal(t, 0, r.failedChecks)
}

func TestSuiteFailedCheckContinues(t *testing.T) {
	ran := []string{}
	suite := NewSuite().Add(
		&Scenario{Key: "a", Name: "A", Fn: func(r *Run) {
			r.Check("broken", errors.New("boom"))
			r.Check("still evaluated", nil)
			ran = append(ran, "a")
		}},
		&Scenario{Key: "b", Name: "B", Fn: func(r *Run) {
			ran = append(ran, "b")
		}},
	)

	r := &Run{}
	assert.False(t, suite.Run(context.Background(), r))

	// An assertion failure marks the scenario failed but neither aborts it
	// nor the scenarios after it.
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, 2, r.checks)
	assert.Equal(t, 1, r.failedChecks)
}

func TestSuiteFatalSkipsRemaining(t *testing.T) {
	ran := []string{}
	teardown := false
	suite := NewSuite().
		Teardown(func(r *Run) { teardown = true }).
		Add(
			&Scenario{Key: "a", Name: "A", Fn: func(r *Run) {
				ran = append(ran, "a")
				r.Fatalf("wait condition timed out")
			}},
			&Scenario{Key: "b", Name: "B", Fn: func(r *Run) {
				ran = append(ran, "b")
			}},
		)

	r := &Run{}
	assert.False(t, suite.Run(context.Background(), r))

	// A fatal abort means the cluster state is untrustworthy: remaining
	// scenarios and teardown are skipped.
	assert.Equal(t, []string{"a"}, ran)
	assert.False(t, teardown)
}

func TestSuiteSetupFailureAbortsEverything(t *testing.T) {
	ran := false
	suite := NewSuite().
		Setup(func(r *Run) error { return ErrSetup }).
		Add(&Scenario{Key: "a", Name: "A", Fn: func(r *Run) { ran = true }})

	assert.False(t, suite.Run(context.Background(), &Run{}))
	assert.False(t, ran)
}

func TestRegistry(t *testing.T) {
	Register("registry-test-a", "Registry A", func(r *Run) {})
	Register("registry-test-b", "Registry B", func(r *Run) {})

	sc, err := Get("registry-test-a")
	require.NoError(t, err)
	assert.Equal(t, "Registry A", sc.Name)

	_, err = Get("registry-test-missing")
	assert.Error(t, err)

	keys := []string{}
	for _, sc := range All() {
		keys = append(keys, sc.Key)
	}
	assert.Contains(t, keys, "registry-test-a")
	assert.Contains(t, keys, "registry-test-b")

	// Registration order is preserved: scenarios share cluster state.
	var ia, ib int
	for i, k := range keys {
		switch k {
		case "registry-test-a":
			ia = i
		case "registry-test-b":
			ib = i
		}
	}
	assert.Less(t, ia, ib)

	assert.Panics(t, func() {
		Register("registry-test-a", "duplicate", func(r *Run) {})
	})
}
