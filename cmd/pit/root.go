package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/checkpoint"
	"github.com/iaptsiauri/pit/internal/config"
	"github.com/iaptsiauri/pit/internal/exec"
	"github.com/iaptsiauri/pit/internal/lifecycle"
	"github.com/iaptsiauri/pit/internal/logging"
	"github.com/iaptsiauri/pit/internal/project"
	"github.com/iaptsiauri/pit/internal/telemetry"
	"github.com/iaptsiauri/pit/internal/tmux"
	"github.com/iaptsiauri/pit/internal/version"
	"github.com/iaptsiauri/pit/internal/workspace"
)

var (
	rootVerbose bool
	rootDir     string
)

var rootCmd = &cobra.Command{
	Use:   "pit",
	Short: "Run coding agents in parallel, one worktree per task",
	Long: `pit runs coding agents in parallel on the same repository.

Each task gets its own git branch (pit/<task>), its own worktree under
.pit/worktrees/<task>, and a tmux session on pit's private tmux server.
Agents that support it are resumed where they left off when relaunched.

With no arguments, opens the interactive dashboard.

Examples:
  pit new fix-auth -p "fix the login timeout"   # Create a task
  pit open fix-auth                             # Launch the agent and attach
  pit run fix-auth                              # Launch in the background
  pit ls                                        # List tasks
  pit rm fix-auth                               # Delete task, worktree and branch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Mirror debug logs to stderr")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "C", "", "Run as if pit was started in this directory")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds everything a project-bound command needs.
type app struct {
	project     *project.Project
	cfg         *config.Config
	logger      *log.Logger
	sessions    *tmux.Manager
	workspaces  *workspace.Manager
	checkpoints *checkpoint.Manager
	orch        *lifecycle.Orchestrator

	closers []func() error
}

// startDir returns the directory commands resolve the project from.
func startDir() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

// openApp discovers the project (initializing it on first use) and wires
// the store, workspace and session managers into an orchestrator.
func openApp(ctx context.Context) (*app, error) {
	start, err := startDir()
	if err != nil {
		return nil, err
	}
	proj, err := project.Discover(start)
	if err != nil {
		return nil, err
	}
	a := &app{project: proj, closers: []func() error{proj.Close}}

	a.cfg, err = config.Load(proj.Root)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		ProjectRoot: proj.Root,
		Level:       a.cfg.Log.Level,
		Verbose:     rootVerbose,
		Console:     os.Stderr,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "pit",
		ServiceVersion: version.Get(),
		OTLPEndpoint:   a.cfg.Telemetry.OTLPEndpoint,
		Insecure:       a.cfg.Telemetry.Insecure,
	})
	if err != nil {
		// Tracing is optional; keep going without it.
		logger.Warn("telemetry disabled", "err", err)
	} else {
		a.closers = append(a.closers, func() error {
			return shutdown(context.WithoutCancel(ctx))
		})
	}

	a.sessions = tmux.NewManager(exec.NewRunner(), tmux.DefaultConfigDir())
	a.sessions.SetLogger(logger)
	a.workspaces = workspace.NewManager(proj.Root)
	a.workspaces.SetLogger(logger)
	a.checkpoints = checkpoint.NewManager(proj.Root)
	a.checkpoints.SetLogger(logger)

	a.orch = lifecycle.New(
		lifecycle.RequiredConfig{
			Store:      proj.DB,
			Workspaces: a.workspaces,
			Sessions:   a.sessions,
		},
		lifecycle.WithDefaultAgent(a.cfg.Defaults.Agent),
		lifecycle.WithShell(os.Getenv("SHELL")),
		lifecycle.WithLogger(logger),
		lifecycle.WithTracer(telemetry.Tracer()),
		lifecycle.WithCheckpoints(a.checkpoints),
	)

	logger.Debug("project opened", "root", proj.Root)
	return a, nil
}

// Close releases the app's resources in reverse order.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("close", "err", err)
	}
}

// requireTmux fails early with install hints when tmux is missing.
func (a *app) requireTmux() error {
	if a.sessions.Available() {
		return nil
	}
	return errors.New("tmux not found in PATH\n\n" +
		"pit runs each agent in a tmux session.\n\n" +
		"Install it with:\n" +
		"  brew install tmux        # macOS\n" +
		"  sudo apt install tmux    # Debian/Ubuntu")
}

// withApp adapts a function taking an app to a cobra RunE.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
