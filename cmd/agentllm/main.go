// Command agentllm runs the agent provider gateway.
//
// Usage:
//
//	agentllm serve --config config.yaml
//	agentllm validate --config config.yaml
//	agentllm version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/agentllm/agentllm/agent"
	"github.com/agentllm/agentllm/agents"
	"github.com/agentllm/agentllm/config"
	"github.com/agentllm/agentllm/credstore"
	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
	"github.com/agentllm/agentllm/metrics"
	"github.com/agentllm/agentllm/provider"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the provider gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentllm version %s\n", version)
	return nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("validate requires --config")
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration valid: server %s:%d, engine %s/%s, storage %s, %d agent(s)\n",
		cfg.Server.Host, cfg.Server.Port, cfg.Engine.Type, cfg.Engine.Model,
		cfg.Storage.Driver, len(cfg.Agents))
	return nil
}

// ServeCmd starts the provider gateway.
type ServeCmd struct {
	Port    int    `help:"Port to listen on (overrides config)." default:"0"`
	Storage string `help:"Storage backend: sqlite3, postgres, mysql (overrides config)." placeholder:"DRIVER"`
	DSN     string `help:"Storage DSN (overrides config)." placeholder:"DSN"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Storage != "" {
		cfg.Storage.Driver = c.Storage
	}
	if c.DSN != "" {
		cfg.Storage.DSN = c.DSN
	}

	// Shared SQL storage for credentials and conversation history
	creds, err := credstore.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer creds.Close()

	hist, err := history.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer hist.Close()

	eng, err := engine.NewRegistry().Create(&cfg.Engine)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	registry := agent.NewRegistry(agent.Deps{Creds: creds, History: hist, Engine: eng})
	if err := agents.Register(registry, cfg.Agents); err != nil {
		return fmt.Errorf("failed to register agents: %w", err)
	}

	server := provider.NewServer(registry, cfg, metrics.New())
	return server.Start(ctx)
}

// loadConfig reads the config file when given, defaults otherwise.
// Environment files are loaded first so ${VAR} expansion sees them.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}
	if path == "" {
		slog.Info("no config file given, using defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("agentllm"),
		kong.Description("OpenAI-compatible gateway for per-user configured agents."),
		kong.UsageOnError(),
	)

	if err := setupLogging(cli.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := kctx.Run(cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
