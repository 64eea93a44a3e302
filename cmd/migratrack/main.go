package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/daemon"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"migratrack.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Report struct {
		Project  string        `arg:"" optional:"" help:"Project key to report on (default: all configured projects)"`
		Format   string        `short:"f" help:"Output format (table|json|csv|markdown|html)"`
		Cached   bool          `help:"Report from stored snapshots without fetching"`
		Parallel bool          `help:"Fetch sources concurrently"`
		Deadline time.Duration `help:"Abort outstanding fetches after this long and report partial data"`
		Write    bool          `short:"w" help:"Write the report into the configured output directory instead of stdout"`
	} `cmd:"" help:"Fetch both sources and report adoption metrics and trend"`

	Trend struct {
		Project string `arg:"" optional:"" help:"Project key to analyze (default: all configured projects)"`
		Format  string `short:"f" help:"Output format (table|json|csv|markdown|html)"`
		Window  int    `help:"Days of snapshot history to analyze (default: configured window)"`
	} `cmd:"" help:"Analyze the adoption trend from stored snapshots"`

	Fetch struct {
		Project  string        `arg:"" optional:"" help:"Project key to capture (default: all configured projects)"`
		Parallel bool          `help:"Fetch sources concurrently"`
		Deadline time.Duration `help:"Abort outstanding fetches after this long"`
	} `cmd:"" help:"Capture snapshots for the configured sources without reporting"`

	History struct {
		Project string `arg:"" optional:"" help:"Only show runs for this project"`
		Run     string `help:"Show one run in full, including its events"`
		Limit   int    `short:"n" help:"Maximum number of runs to list" default:"20"`
		JSON    bool   `help:"Emit JSON instead of a table"`
	} `cmd:"" help:"List recent tracking runs from the run log"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Run continuous tracking with scheduled captures"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Bootstrap logging before the configuration is available; the config's
	// logging block takes over once loaded.
	bootLevel := slog.LevelInfo
	if CLI.Verbose {
		bootLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: bootLevel})))

	switch ctx.Command() {
	case "report", "report <project>":
		cfg := mustLoadConfig()
		if err := runReport(context.Background(), cfg, CLI.Report.Project, os.Stdout); err != nil {
			slog.Error("Report failed", logfields.Error(err))
			os.Exit(1)
		}
	case "trend", "trend <project>":
		cfg := mustLoadConfig()
		if err := runTrend(context.Background(), cfg, CLI.Trend.Project, os.Stdout); err != nil {
			slog.Error("Trend analysis failed", logfields.Error(err))
			os.Exit(1)
		}
	case "fetch", "fetch <project>":
		cfg := mustLoadConfig()
		if err := runFetch(context.Background(), cfg, CLI.Fetch.Project); err != nil {
			slog.Error("Fetch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "history", "history <project>":
		cfg := mustLoadConfig()
		if err := runHistory(context.Background(), cfg, CLI.History.Project, os.Stdout); err != nil {
			slog.Error("History failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
	case "daemon":
		cfg := mustLoadConfig()
		if err := runDaemon(cfg, CLI.Config); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Printf("migratrack %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	setupLogging(cfg.Logging, CLI.Verbose)
	return cfg
}

// setupLogging installs the default logger per the configuration. Logs go to
// stderr so report output on stdout stays machine-consumable. --verbose
// forces debug level regardless of the configured one.
func setupLogging(cfg config.LoggingConfig, verbose bool) {
	level := slog.LevelInfo
	switch cfg.Level {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// resolveProjects maps an optional project argument onto the configured
// project list. Naming a project that is not configured is an error so a
// typo never creates a fresh snapshot tree.
func resolveProjects(cfg *config.Config, selected string) ([]string, error) {
	if selected == "" {
		return cfg.Projects, nil
	}
	for _, project := range cfg.Projects {
		if project == selected {
			return []string{selected}, nil
		}
	}
	return nil, fmt.Errorf("project %q is not configured (configured: %s)",
		selected, strings.Join(cfg.Projects, ", "))
}

// withDeadline bounds ctx when the user asked for a deadline; the pipeline
// turns an expired deadline into a degraded partial result.
func withDeadline(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	if deadline > 0 {
		return context.WithTimeout(ctx, deadline)
	}
	return context.WithCancel(ctx)
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", slog.String("path", configPath), slog.Bool("force", force))
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", configPath)
	return nil
}

func runDaemon(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	slog.Info("Daemon running, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
