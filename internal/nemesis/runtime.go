package nemesis

import "context"

// Runtime is the container control surface the nemesis delegates to. Calls
// are synchronous and idempotent; confirmation that a fault is actually in
// effect is the controller's job, not the runtime's.
type Runtime interface {
	// Start starts a stopped container.
	Start(ctx context.Context, container string) error
	// Stop stops a container gracefully, letting shutdown hooks run.
	Stop(ctx context.Context, container string) error
	// Kill terminates a container abruptly, bypassing shutdown hooks.
	Kill(ctx context.Context, container string) error
	// Running reports whether the container process is up.
	Running(ctx context.Context, container string) (bool, error)

	// Disconnect detaches the container from the shared cluster network,
	// isolating it from all peers in one action.
	Disconnect(ctx context.Context, container string) error
	// Reconnect reattaches the container to the shared cluster network.
	Reconnect(ctx context.Context, container string) error
	// Connected reports whether the container is attached to the network.
	Connected(ctx context.Context, container string) (bool, error)
}
