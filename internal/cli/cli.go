// Package cli wires the configuration, cluster clients, fault injector, and
// scenario suite behind the command-line commands.
package cli

import (
	"context"
	"fmt"
	"time"

	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/schism/internal/cluster"
	"github.com/st3v3nmw/schism/internal/config"
	"github.com/st3v3nmw/schism/internal/ledger"
	"github.com/st3v3nmw/schism/internal/nemesis"
	"github.com/st3v3nmw/schism/internal/oracle"
	"github.com/st3v3nmw/schism/internal/scenario"
	"github.com/st3v3nmw/schism/internal/workload"
	_ "github.com/st3v3nmw/schism/scenarios/referee"
)

// RunScenarios runs the named scenarios, or all registered ones when no
// arguments are given.
func RunScenarios(ctx context.Context, cmd *commands.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	selected, err := selectScenarios(cmd.Args().Slice())
	if err != nil {
		return err
	}

	r, cleanup, err := buildRun(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	suite := scenario.NewSuite().
		Setup(scenario.Bootstrap).
		Teardown(scenario.FinalChecks).
		Add(selected...)

	if !suite.Run(ctx, r) {
		return commands.Exit("", 1)
	}

	return nil
}

// ListScenarios prints the registered scenarios in run order.
func ListScenarios(ctx context.Context, cmd *commands.Command) error {
	fmt.Println("Registered scenarios:")
	fmt.Println()

	for _, sc := range scenario.All() {
		fmt.Printf("  %-22s - %s\n", sc.Key, sc.Name)
	}

	fmt.Println()
	fmt.Println("Run all with 'schism run', or a subset with 'schism run <scenario>...'.")

	return nil
}

// CheckCluster verifies the harness can reach everything the suite needs:
// both nodes, the referee, and the container runtime.
func CheckCluster(ctx context.Context, cmd *commands.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	rt := nemesis.NewDockerRuntime(cfg.Runtime.Binary, cfg.Runtime.Network)

	for _, n := range cfg.Cluster.Nodes {
		if _, err := rt.Running(ctx, n.Container); err != nil {
			return fmt.Errorf("container %s not inspectable: %w", n.Container, err)
		}

		c, err := cluster.Connect(ctx, n.Name, n.DSN)
		if err != nil {
			return fmt.Errorf("connect %s: %w", n.Name, err)
		}

		err = c.Ping(ctx)
		c.Close()
		if err != nil {
			return fmt.Errorf("ping %s: %w", n.Name, err)
		}

		fmt.Printf("✓ %s reachable\n", n.Name)
	}

	ref, err := cluster.ConnectReferee(ctx, cfg.Cluster.Referee.DSN)
	if err != nil {
		return fmt.Errorf("connect referee: %w", err)
	}
	defer ref.Close()

	if err := ref.Ping(ctx); err != nil {
		return fmt.Errorf("ping referee: %w", err)
	}

	fmt.Println("✓ referee reachable")
	return nil
}

func selectScenarios(keys []string) ([]*scenario.Scenario, error) {
	if len(keys) == 0 {
		return scenario.All(), nil
	}

	selected := make([]*scenario.Scenario, 0, len(keys))
	for _, key := range keys {
		sc, err := scenario.Get(key)
		if err != nil {
			msg := "\nRegistered scenarios:\n"
			for _, known := range scenario.All() {
				msg += fmt.Sprintf("- %s\n", known.Key)
			}
			return nil, fmt.Errorf("%w\n%s", err, msg)
		}
		selected = append(selected, sc)
	}

	return selected, nil
}

// buildRun connects everything the suite needs. The returned cleanup closes
// the connection pools; container state is left to the suite itself.
func buildRun(ctx context.Context, cfg *config.Config) (*scenario.Run, func(), error) {
	clients := make([]cluster.Client, 0, len(cfg.Cluster.Nodes))
	closers := make([]func(), 0, len(cfg.Cluster.Nodes)+1)
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	nodeContainers := make(map[string]string, len(cfg.Cluster.Nodes))
	containers := map[string]string{"referee": cfg.Cluster.Referee.Container}

	for _, n := range cfg.Cluster.Nodes {
		c, err := cluster.Connect(ctx, n.Name, n.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect %s: %w", n.Name, err)
		}

		clients = append(clients, c)
		closers = append(closers, c.Close)
		nodeContainers[n.Name] = n.Container
		containers[n.Name] = n.Container
	}

	referee, err := cluster.ConnectReferee(ctx, cfg.Cluster.Referee.DSN)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect referee: %w", err)
	}
	closers = append(closers, referee.Close)

	workloadCfg := workload.Config{
		Workers:        cfg.Workload.Workers,
		Accounts:       cfg.Workload.Accounts,
		InitialBalance: cfg.Workload.InitialBalance,
		MaxAmount:      cfg.Workload.MaxAmount,
		OpTimeout:      cfg.Workload.OpTimeout.Std(),
	}

	timeouts := scenario.Timeouts{
		Online:         cfg.Timeouts.Online.Std(),
		Convergence:    cfg.Timeouts.Convergence.Std(),
		FailureWindow:  cfg.Timeouts.FailureWindow.Std(),
		RecoveryWindow: cfg.Timeouts.RecoveryWindow.Std(),
		Snapshot:       cfg.Timeouts.Snapshot.Std(),
	}

	rt := nemesis.NewDockerRuntime(cfg.Runtime.Binary, cfg.Runtime.Network)
	gen := workload.New(clients, ledger.NewRecorder(), workloadCfg)
	nem := nemesis.NewController(rt, nodeContainers)
	mon := cluster.NewMonitor(250 * time.Millisecond)
	orc := scenario.NewOrchestrator(gen, nem, mon, clients, timeouts)

	r := &scenario.Run{
		Orc:        orc,
		Oracle:     oracle.New(cfg.Workload.Accounts, cfg.Workload.InitialBalance),
		Referee:    referee,
		Runtime:    rt,
		Containers: containers,
		Workload:   workloadCfg,
		Timeouts:   timeouts,
	}

	return r, cleanup, nil
}
