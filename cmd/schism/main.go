package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/schism/internal/cli"
	"github.com/st3v3nmw/schism/internal/logging"
)

func main() {
	// Credentials referenced from the config file may live in .env.
	_ = godotenv.Load()

	configFlag := &commands.StringFlag{
		Name:    "config",
		Usage:   "Path to the harness config file",
		Aliases: []string{"c"},
		Value:   "schism.yaml",
	}

	cmd := &commands.Command{
		Name:  "schism",
		Usage: "Fault-injection harness for referee-arbitrated multi-master clusters",
		Flags: []commands.Flag{
			&commands.BoolFlag{
				Name:    "verbose",
				Usage:   "Show debug-level log output",
				Aliases: []string{"v"},
				Value:   false,
			},
		},
		Before: func(ctx context.Context, cmd *commands.Command) (context.Context, error) {
			level := "info"
			if cmd.Bool("verbose") {
				level = "debug"
			}
			logging.Init(level)
			return ctx, nil
		},
		Commands: []*commands.Command{
			{
				Name:      "run",
				Usage:     "Run failure scenarios against the cluster",
				ArgsUsage: "[scenario...]",
				Flags:     []commands.Flag{configFlag},
				Action:    cli.RunScenarios,
			},
			{
				Name:   "list",
				Usage:  "Show registered scenarios",
				Action: cli.ListScenarios,
			},
			{
				Name:   "check",
				Usage:  "Verify the cluster and runtime are reachable",
				Flags:  []commands.Flag{configFlag},
				Action: cli.CheckCluster,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Run(ctx, os.Args)
	_ = logging.Sync()
	if err != nil {
		log.Fatal(err)
	}
}
