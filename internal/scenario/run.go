package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/oracle"
	"github.com/st3v3nmw/schism/internal/workload"
)

// Arbiter is the referee's query surface as the scenarios consume it.
type Arbiter interface {
	oracle.GrantReader
	Ping(ctx context.Context) error
}

// Run is the shared context handed to every scenario in a suite. Anything a
// scenario needs to carry across steps (which node currently holds the
// grant, staged container state) lives here, not in globals.
type Run struct {
	Orc     *Orchestrator
	Oracle  *oracle.Oracle
	Referee Arbiter
	Runtime nemesis.Runtime

	// Containers maps logical names (node1, node2, referee) to container
	// names, for scenarios that stage containers directly.
	Containers map[string]string
	Workload   workload.Config
	Timeouts   Timeouts

	ctx            context.Context
	checks         int
	failedChecks   int
	scenarioFailed bool
}

// Ctx returns the run's context.
func (r *Run) Ctx() context.Context {
	return r.ctx
}

// Check reports one assertion verdict. Failures mark the scenario failed but
// do not abort it: each scenario reports pass/fail per assertion so a run
// pinpoints which invariant class broke.
func (r *Run) Check(name string, err error) {
	r.checks++

	if err == nil {
		fmt.Printf("  %s %s\n", checkMark, name)
		return
	}

	r.failedChecks++
	r.scenarioFailed = true

	fmt.Printf("  %s %s\n", crossMark, name)
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Printf("      %s\n", line)
	}
}

// Fatalf aborts the scenario (and the rest of the suite): the harness cannot
// produce a trustworthy verdict. Used for wait timeouts and staging errors,
// which are harness conditions, not system-under-test bugs.
func (r *Run) Fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

// PerformFailure runs one failure step, aborting the scenario on any harness
// error. Every captured window feeds the oracle's replay ledger here, so the
// ledger stays complete even when the scenario asserts isolation on none of
// them.
func (r *Run) PerformFailure(action nemesis.Action, opts Options) (during, after []oracle.Window) {
	during, after, err := r.Orc.PerformFailure(r.ctx, action, opts)
	if err != nil {
		r.Fatalf("perform failure %s: %v", action, err)
	}

	r.Oracle.Ingest(during)
	r.Oracle.Ingest(after)

	return during, after
}

// AwaitOnline blocks until the node is online and caught up.
func (r *Run) AwaitOnline(node string) {
	if err := r.Orc.AwaitOnline(r.ctx, node); err != nil {
		r.Fatalf("await online %s: %v", node, err)
	}
}

// PauseLoad drains issuance so staged container operations see quiet nodes.
func (r *Run) PauseLoad() {
	r.Orc.Generator().Pause()
}

// ResumeLoad restarts issuance after PauseLoad.
func (r *Run) ResumeLoad() {
	r.Orc.Generator().Resume()
}

// StopContainer stops a container by logical name (graceful).
func (r *Run) StopContainer(name string) {
	container, ok := r.Containers[name]
	if !ok {
		r.Fatalf("unknown container %q", name)
	}
	if err := r.Runtime.Stop(r.ctx, container); err != nil {
		r.Fatalf("stop %s: %v", name, err)
	}
}

// StartContainer starts a container by logical name.
func (r *Run) StartContainer(name string) {
	container, ok := r.Containers[name]
	if !ok {
		r.Fatalf("unknown container %q", name)
	}
	if err := r.Runtime.Start(r.ctx, container); err != nil {
		r.Fatalf("start %s: %v", name, err)
	}
}
