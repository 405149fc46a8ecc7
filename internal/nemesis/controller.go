package nemesis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/cluster"
	"github.com/st3v3nmw/schism/internal/logging"
	"github.com/st3v3nmw/schism/pkg/threadsafe"
)

// State is the fault-injection state of one node, independent of workload
// state.
type State uint8

const (
	// Healthy: no fault applied, node confirmed online and caught up.
	Healthy State = iota
	// Degraded: a fault is in effect.
	Degraded
	// Recovering: the fault was cleared but the node has not yet been
	// confirmed online.
	Recovering
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Recovering:
		return "recovering"
	default:
		return "invalid"
	}
}

// Controller applies and clears one fault at a time against named nodes.
//
// Apply is synchronous: it returns only once the fault is confirmed in effect
// (the container is actually down, the network rule actually installed), not
// merely requested. Clear reverses the fault and returns without waiting for
// recovery; recovery readiness is a separate explicit wait owned by the
// orchestrator.
type Controller struct {
	rt         Runtime
	containers map[string]string
	states     *threadsafe.Map[string, State]

	confirmTimeout time.Duration
	pollInterval   time.Duration
	log            *zap.Logger
}

// NewController creates a controller. containers maps node names to container
// names.
func NewController(rt Runtime, containers map[string]string) *Controller {
	states := threadsafe.NewMap[string, State]()
	for node := range containers {
		states.Set(node, Healthy)
	}

	return &Controller{
		rt:             rt,
		containers:     containers,
		states:         states,
		confirmTimeout: 30 * time.Second,
		pollInterval:   200 * time.Millisecond,
		log:            logging.Named("nemesis"),
	}
}

// State returns the fault-injection state of a node.
func (c *Controller) State(node string) State {
	s, ok := c.states.Get(node)
	if !ok {
		return Healthy
	}
	return s
}

// MarkHealthy records that a recovering node has been confirmed online and
// caught up. Called by the orchestrator after its wait conditions pass.
func (c *Controller) MarkHealthy(node string) {
	c.states.Set(node, Healthy)
}

// Apply puts the action's fault into effect and confirms it before returning.
func (c *Controller) Apply(ctx context.Context, a Action) error {
	if a.Kind == NoFailure {
		return nil
	}

	container, err := c.container(a.Node)
	if err != nil {
		return err
	}

	c.log.Info("applying fault", zap.String("action", a.String()))

	switch a.Kind {
	case StopNode, RestartNode:
		if err := c.rt.Stop(ctx, container); err != nil {
			return fmt.Errorf("apply %s: %w", a, err)
		}
		if err := c.confirm(ctx, a, c.stopped(ctx, container)); err != nil {
			return err
		}

	case CrashRecoverNode:
		if err := c.rt.Kill(ctx, container); err != nil {
			return fmt.Errorf("apply %s: %w", a, err)
		}
		if err := c.confirm(ctx, a, c.stopped(ctx, container)); err != nil {
			return err
		}

	case SingleNodePartition:
		// One action isolates the node from peer and referee together;
		// two independent link failures would be a different scenario.
		if err := c.rt.Disconnect(ctx, container); err != nil {
			return fmt.Errorf("apply %s: %w", a, err)
		}
		if err := c.confirm(ctx, a, c.detached(ctx, container)); err != nil {
			return err
		}

	default:
		return fmt.Errorf("apply: unsupported action %s", a)
	}

	c.states.Set(a.Node, Degraded)
	return nil
}

// Clear reverses the action's fault. The node transitions to Recovering; it
// becomes Healthy only after the orchestrator's explicit wait confirms it.
func (c *Controller) Clear(ctx context.Context, a Action) error {
	if a.Kind == NoFailure {
		return nil
	}

	container, err := c.container(a.Node)
	if err != nil {
		return err
	}

	c.log.Info("clearing fault", zap.String("action", a.String()))

	switch a.Kind {
	case StopNode:
		// The node stays down: the scenario owns when (and whether) it
		// comes back.

	case RestartNode, CrashRecoverNode:
		if err := c.rt.Start(ctx, container); err != nil {
			return fmt.Errorf("clear %s: %w", a, err)
		}

	case SingleNodePartition:
		if err := c.rt.Reconnect(ctx, container); err != nil {
			return fmt.Errorf("clear %s: %w", a, err)
		}

	default:
		return fmt.Errorf("clear: unsupported action %s", a)
	}

	c.states.Set(a.Node, Recovering)
	return nil
}

func (c *Controller) container(node string) (string, error) {
	container, ok := c.containers[node]
	if !ok {
		return "", fmt.Errorf("unknown node %q", node)
	}
	return container, nil
}

func (c *Controller) confirm(ctx context.Context, a Action, cond func() bool) error {
	if cluster.Eventually(ctx, cond, c.confirmTimeout, c.pollInterval) {
		return nil
	}

	return fmt.Errorf("fault %s not confirmed within %s: %w", a, c.confirmTimeout, cluster.ErrTimeout)
}

func (c *Controller) stopped(ctx context.Context, container string) func() bool {
	return func() bool {
		running, err := c.rt.Running(ctx, container)
		return err == nil && !running
	}
}

func (c *Controller) detached(ctx context.Context, container string) func() bool {
	return func() bool {
		connected, err := c.rt.Connected(ctx, container)
		return err == nil && !connected
	}
}
