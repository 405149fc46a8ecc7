package nemesis

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/st3v3nmw/schism/internal/logging"
)

// DockerRuntime drives containers through the docker CLI. State queries go
// through `docker inspect` and are parsed out of its JSON output.
type DockerRuntime struct {
	// Binary is the docker executable, usually just "docker".
	Binary string
	// Network is the shared cluster network containers are detached from
	// during a partition.
	Network string

	log *zap.Logger
}

var _ Runtime = (*DockerRuntime)(nil)

// NewDockerRuntime creates a runtime using the given binary and network.
func NewDockerRuntime(binary, network string) *DockerRuntime {
	return &DockerRuntime{Binary: binary, Network: network, log: logging.Named("docker")}
}

func (d *DockerRuntime) Start(ctx context.Context, container string) error {
	return d.run(ctx, "start", container)
}

func (d *DockerRuntime) Stop(ctx context.Context, container string) error {
	return d.run(ctx, "stop", container)
}

func (d *DockerRuntime) Kill(ctx context.Context, container string) error {
	return d.run(ctx, "kill", container)
}

func (d *DockerRuntime) Running(ctx context.Context, container string) (bool, error) {
	out, err := d.output(ctx, "inspect", container)
	if err != nil {
		return false, err
	}

	return gjson.GetBytes(out, "0.State.Running").Bool(), nil
}

func (d *DockerRuntime) Disconnect(ctx context.Context, container string) error {
	return d.run(ctx, "network", "disconnect", d.Network, container)
}

func (d *DockerRuntime) Reconnect(ctx context.Context, container string) error {
	return d.run(ctx, "network", "connect", d.Network, container)
}

func (d *DockerRuntime) Connected(ctx context.Context, container string) (bool, error) {
	out, err := d.output(ctx, "inspect", container)
	if err != nil {
		return false, err
	}

	networks := gjson.GetBytes(out, "0.NetworkSettings.Networks").Map()
	_, attached := networks[d.Network]
	return attached, nil
}

func (d *DockerRuntime) run(ctx context.Context, args ...string) error {
	d.log.Debug("docker", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s",
			d.Binary, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	return nil
}

func (d *DockerRuntime) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", d.Binary, strings.Join(args, " "), err)
	}

	return out, nil
}
