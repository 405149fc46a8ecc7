package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
	checkMark = green("✓")
	crossMark = red("✗")
	skipMark  = yellow("○")
)

// Suite runs an ordered list of scenarios against one shared cluster.
type Suite struct {
	setupFn    func(*Run) error
	teardownFn func(*Run)
	scenarios  []*Scenario
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{scenarios: make([]*Scenario, 0)}
}

// Setup adds a setup function that must bring the cluster to its initial
// healthy state. A setup error aborts the whole suite.
func (s *Suite) Setup(fn func(*Run) error) *Suite {
	s.setupFn = fn
	return s
}

// Teardown adds a teardown function that runs after all scenarios, typically
// the final convergence checks.
func (s *Suite) Teardown(fn func(*Run)) *Suite {
	s.teardownFn = fn
	return s
}

// Add appends scenarios to the suite. Order is preserved: scenarios share
// cluster state (the current grant holder) and depend on their sequence.
func (s *Suite) Add(scenarios ...*Scenario) *Suite {
	s.scenarios = append(s.scenarios, scenarios...)
	return s
}

// Run executes the suite and reports whether everything passed. Assertion
// failures mark a scenario failed and continue; panics (wait timeouts,
// staging errors) abort the remaining scenarios because the cluster state is
// no longer trustworthy.
func (s *Suite) Run(ctx context.Context, r *Run) bool {
	start := time.Now()
	r.ctx = ctx

	if s.setupFn != nil {
		if err := s.runSetup(r); err != nil {
			fmt.Printf("%s %s\n", crossMark, "SETUP")
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Printf("   %s\n", line)
			}
			return false
		}
	}

	failed := false
	fatal := false
	for _, sc := range s.scenarios {
		if fatal {
			fmt.Printf("%s %s [skipped]\n", skipMark, sc.Name)
			continue
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}

		fmt.Printf("%s\n", bold(sc.Name))

		r.scenarioFailed = false
		if s.runScenario(sc, r) {
			fatal = true
		}
		if r.scenarioFailed {
			failed = true
		}
	}

	if s.teardownFn != nil && !fatal {
		fmt.Printf("%s\n", bold("teardown"))
		r.scenarioFailed = false
		s.runTeardown(r)
		if r.scenarioFailed {
			failed = true
		}
	}

	fmt.Println()
	if failed || fatal {
		fmt.Printf("%s %s %d/%d assertions failed",
			bold("FAILED"), crossMark, r.failedChecks, r.checks)
	} else {
		fmt.Printf("%s %s %d assertions", bold("PASSED"), checkMark, r.checks)
	}

	fmt.Printf(" (took %s)\n", time.Since(start).Round(time.Millisecond))
	return !failed && !fatal
}

func (s *Suite) runSetup(r *Run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()

	return s.setupFn(r)
}

// runScenario reports whether the scenario aborted fatally.
func (s *Suite) runScenario(sc *Scenario, r *Run) (fatal bool) {
	defer func() {
		if rec := recover(); rec != nil {
			fatal = true
			r.scenarioFailed = true

			fmt.Printf("  %s scenario aborted\n", crossMark)
			for _, line := range strings.Split(fmt.Sprintf("%v", rec), "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}()

	sc.Fn(r)
	return false
}

func (s *Suite) runTeardown(r *Run) {
	defer func() {
		if rec := recover(); rec != nil {
			r.scenarioFailed = true
			fmt.Printf("  %s teardown aborted: %v\n", crossMark, rec)
		}
	}()

	s.teardownFn(r)
}
