// Command acpgate is an ACP middleware that sits between an editor client and
// a subordinate coding-agent CLI, interposing permission gating, session
// modes, and plan collection on a transparent JSON-RPC relay.
//
// The editor speaks newline-delimited JSON-RPC on acpgate's stdin/stdout;
// every session spawns the configured agent binary as a subprocess and
// bridges to it the same way. All diagnostics go to stderr.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/acpgate/acpgate/config"
	"github.com/acpgate/acpgate/peer"
	"github.com/acpgate/acpgate/proxy"
)

var (
	configPath  string
	agentBinary string
	agentArgs   []string
	modelFlag   string
	modelID     string
	defaultMode string
	verbose     bool
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "acpgate",
	Short: "Policy-interposing ACP proxy for coding agents",
	Long: `acpgate relays the Agent Client Protocol between an editor and a
coding-agent CLI subprocess, classifying every tool invocation the agent
attempts and applying session-mode policy: ask for approval, auto-approve,
collect a plan instead of executing, or block outright.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to acpgate.yaml")
	rootCmd.Flags().StringVar(&agentBinary, "agent", "", "Agent binary to spawn per session (overrides config)")
	rootCmd.Flags().StringArrayVar(&agentArgs, "agent-arg", nil, "Argument passed to the agent binary (repeatable)")
	rootCmd.Flags().StringVar(&modelFlag, "model-flag", "", "Flag the agent accepts for model selection")
	rootCmd.Flags().StringVar(&modelID, "model", "", "Default model id passed to the agent")
	rootCmd.Flags().StringVar(&defaultMode, "mode", "", "Mode new sessions start in")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// stdout carries protocol frames; logging must never touch it.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(cfg.SlogLevel())
	}

	dh := &deferredHandler{}
	conn := peer.NewConn(os.Stdin, os.Stdout, dh)
	coord := proxy.NewCoordinator(conn, cfg)
	dh.coord = coord

	if configPath != "" {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			if err := config.Watch(configPath, stop, func(next *config.Config) {
				coord.ApplyConfig(next)
				if !verbose {
					logLevel.Set(next.SlogLevel())
				}
			}); err != nil {
				slog.Warn("config watch unavailable", "error", err)
			}
		}()
	}

	slog.Info("acpgate serving", "agent", cfg.Agent.Binary, "defaultMode", cfg.DefaultMode)
	return conn.Run(ctx)
}

// applyFlagOverrides lets CLI flags win over the config file.
func applyFlagOverrides(cfg *config.Config) {
	if agentBinary != "" {
		cfg.Agent.Binary = agentBinary
	}
	if len(agentArgs) > 0 {
		cfg.Agent.Args = agentArgs
	}
	if modelFlag != "" {
		cfg.Agent.ModelFlag = modelFlag
	}
	if modelID != "" {
		cfg.Agent.Model = modelID
	}
	if defaultMode != "" {
		cfg.DefaultMode = defaultMode
	}
}

// deferredHandler breaks the construction cycle between the upstream
// connection and the coordinator that handles it.
type deferredHandler struct {
	coord *proxy.Coordinator
}

func (d *deferredHandler) HandleCall(ctx context.Context, conn *peer.Conn, call peer.Call) {
	d.coord.HandleCall(ctx, conn, call)
}
