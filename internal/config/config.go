// Package config loads and validates the harness configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "schism.yaml"

// Duration parses YAML durations in time.ParseDuration form ("30s", "1m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Node is one cluster member: its connection string and the container the
// runtime stages it through.
type Node struct {
	Name      string `yaml:"name"`
	DSN       string `yaml:"dsn"`
	Container string `yaml:"container"`
}

// Referee is the arbitration service.
type Referee struct {
	DSN       string `yaml:"dsn"`
	Container string `yaml:"container"`
}

type Cluster struct {
	Nodes   []Node  `yaml:"nodes"`
	Referee Referee `yaml:"referee"`
}

// Runtime configures the container runtime used for fault injection.
type Runtime struct {
	Binary  string `yaml:"binary"`
	Network string `yaml:"network"`
}

type Workload struct {
	Accounts       int      `yaml:"accounts"`
	InitialBalance int64    `yaml:"initial_balance"`
	Workers        int      `yaml:"workers"`
	MaxAmount      int64    `yaml:"max_amount"`
	OpTimeout      Duration `yaml:"op_timeout"`
}

type Timeouts struct {
	Online         Duration `yaml:"online"`
	Convergence    Duration `yaml:"convergence"`
	FailureWindow  Duration `yaml:"failure_window"`
	RecoveryWindow Duration `yaml:"recovery_window"`
	Snapshot       Duration `yaml:"snapshot"`
}

type Config struct {
	Cluster  Cluster  `yaml:"cluster"`
	Runtime  Runtime  `yaml:"runtime"`
	Workload Workload `yaml:"workload"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Load reads, expands, and validates the config at path. Environment
// variables in DSNs expand with os.ExpandEnv so passwords stay out of the
// file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Cluster.Nodes {
		cfg.Cluster.Nodes[i].DSN = os.ExpandEnv(cfg.Cluster.Nodes[i].DSN)
	}
	cfg.Cluster.Referee.DSN = os.ExpandEnv(cfg.Cluster.Referee.DSN)

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Runtime.Binary == "" {
		c.Runtime.Binary = "docker"
	}
	if c.Workload.Accounts == 0 {
		c.Workload.Accounts = 1000
	}
	if c.Workload.InitialBalance == 0 {
		c.Workload.InitialBalance = 1000
	}
	if c.Workload.Workers == 0 {
		c.Workload.Workers = 8
	}
	if c.Workload.MaxAmount == 0 {
		c.Workload.MaxAmount = 10
	}
	if c.Workload.OpTimeout == 0 {
		c.Workload.OpTimeout = Duration(5 * time.Second)
	}
	if c.Timeouts.Online == 0 {
		c.Timeouts.Online = Duration(60 * time.Second)
	}
	if c.Timeouts.Convergence == 0 {
		c.Timeouts.Convergence = Duration(60 * time.Second)
	}
	if c.Timeouts.FailureWindow == 0 {
		c.Timeouts.FailureWindow = Duration(5 * time.Second)
	}
	if c.Timeouts.RecoveryWindow == 0 {
		c.Timeouts.RecoveryWindow = Duration(5 * time.Second)
	}
	if c.Timeouts.Snapshot == 0 {
		c.Timeouts.Snapshot = Duration(10 * time.Second)
	}
}

func (c *Config) validate() error {
	if len(c.Cluster.Nodes) != 2 {
		return fmt.Errorf("cluster needs exactly 2 nodes, got %d", len(c.Cluster.Nodes))
	}

	seen := map[string]bool{}
	for _, n := range c.Cluster.Nodes {
		if n.Name == "" || n.DSN == "" || n.Container == "" {
			return fmt.Errorf("node needs name, dsn, and container")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
	}

	if c.Cluster.Referee.DSN == "" || c.Cluster.Referee.Container == "" {
		return fmt.Errorf("referee needs dsn and container")
	}
	if c.Runtime.Network == "" {
		return fmt.Errorf("runtime network cannot be empty")
	}
	if c.Workload.Accounts < 2 {
		return fmt.Errorf("workload needs at least 2 accounts")
	}
	if c.Workload.MaxAmount <= 0 || c.Workload.InitialBalance <= 0 {
		return fmt.Errorf("workload amounts must be positive")
	}

	return nil
}
