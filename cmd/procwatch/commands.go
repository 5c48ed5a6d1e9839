package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/procwatch/internal/config"
	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/history/sqlite"
	"github.com/loykin/procwatch/internal/logger"
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/process"
	"github.com/loykin/procwatch/internal/server"
	"github.com/loykin/procwatch/internal/supervisor"
)

const historyWriteTimeout = 2 * time.Second

type runFunc func(ctx context.Context, f RunFlags, changed func(string) bool) error

// buildRoot creates the procwatch command. run receives the parsed flags and
// a predicate telling which of them were set explicitly.
func buildRoot(flags *RunFlags, run runFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "procwatch",
		Short: "Keep one executable running",
		Long: `procwatch launches a single executable and keeps it alive. It restarts the
process when it exits, when files next to it change, or on a fixed timer.

Examples:
  procwatch --path ./server --watchFiles
  procwatch -p ./worker.sh --onlyNonZeroExit --restartDelay 0
  procwatch -p ./app --forceRestartDelay 3600000 --metrics-listen :9100
  procwatch --config procwatch.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *flags, cmd.Flags().Changed)
		},
	}

	fs := root.Flags()
	fs.StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	fs.StringVarP(&flags.Path, "path", "p", "", "path to the executable (required)")
	fs.BoolVarP(&flags.WatchFiles, "watchFiles", "w", false, "restart when files in the executable's directory change")
	fs.BoolVar(&flags.Recursive, "recursive", false, "include subdirectories when watching files")
	fs.BoolVarP(&flags.OnlyNonZeroExit, "onlyNonZeroExit", "z", false, "restart only after a failed exit; a clean exit stops procwatch")
	fs.BoolVar(&flags.AllowNoExtension, "allowNoExtension", false, "accept an executable whose file name has no extension")
	fs.Int64VarP(&flags.RestartDelay, "restartDelay", "r", config.DefaultRestartDelayMS, "pause before restarting, ms")
	fs.Int64VarP(&flags.RecheckDelay, "recheckDelay", "c", config.DefaultRecheckDelayMS, "poll interval for exit and file checks, ms")
	fs.Int64Var(&flags.ForceRestartDelay, "forceRestartDelay", 0, "periodic forced restart interval, ms; 0 disables")
	fs.Int64Var(&flags.StopTimeout, "stop-timeout", config.DefaultStopTimeoutMS, "how long to wait for a killed process to be reaped, ms")

	fs.StringVar(&flags.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&flags.LogFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&flags.LogColor, "log-color", false, "colorize text logs")
	fs.StringVar(&flags.LogDir, "log-dir", "", "write the child's stdout/stderr to rotating files in this directory")

	fs.StringVar(&flags.MetricsListen, "metrics-listen", "", "serve /status, /healthz and /metrics on this address")
	fs.Int64Var(&flags.UsageInterval, "usage-interval", config.DefaultUsageIntervalMS, "child CPU/memory sampling interval, ms; 0 disables")
	fs.StringVar(&flags.HistoryDSN, "history-db", "", "append lifecycle events to this SQLite database")

	return root
}

// loadConfig merges defaults, the optional config file and explicit flags.
func loadConfig(f RunFlags, changed func(string) bool) (config.Config, error) {
	fc, err := config.LoadFile(f.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	f.apply(&fc, changed)
	return fc.Build()
}

// fatalLogger reports errors that happen before or after the supervisor's
// own logger exists, honoring the log flags.
func fatalLogger(f RunFlags, w io.Writer) *slog.Logger {
	cfg := logger.DefaultConfig()
	if f.LogLevel != "" {
		cfg.Slog.Level = logger.Level(f.LogLevel)
	}
	if f.LogFormat != "" {
		cfg.Slog.Format = logger.Format(f.LogFormat)
	}
	cfg.Slog.Color = f.LogColor
	return cfg.NewSloggerTo(w)
}

// runSupervisor starts the child and supervises it until ctx ends or the
// supervisor stops on its own. A clean exit under OnlyNonZeroExit is success.
func runSupervisor(ctx context.Context, cfg config.Config, out io.Writer) error {
	log := cfg.Log.NewSloggerTo(out)

	spec, err := cfg.ProcessSpec()
	if err != nil {
		return err
	}
	if cfg.WatchFiles {
		warnLogsInWatchedDir(log, spec)
	}

	observers := []func(process.Event){supervisor.RecordMetrics}
	if cfg.HistoryDSN != "" {
		sink, err := sqlite.New(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() { _ = sink.Close() }()
		observers = append(observers, history.Observer(sink, historyWriteTimeout, log))
	}

	proc := process.New(spec,
		process.WithLogger(log),
		process.WithObserver(supervisor.Observers(observers...)),
	)
	sup := supervisor.New(proc, supervisor.Options{
		RecheckDelay:      cfg.RecheckDelay,
		RestartDelay:      cfg.RestartDelay,
		ForceRestartDelay: cfg.ForceRestartDelay,
		WatchFiles:        cfg.WatchFiles,
		Recursive:         cfg.Recursive,
	}, log)

	if err := sup.Start(); err != nil {
		return err
	}
	defer sup.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsListen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		usage := metrics.NewUsageCollector(spec.Name, cfg.UsageInterval, sup.PID, log)
		if err := usage.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register usage metrics: %w", err)
		}
		g.Go(func() error {
			usage.Run(gctx)
			return nil
		})
		h := server.NewRouter(sup, prometheus.DefaultGatherer, "").Handler()
		g.Go(func() error { return server.Serve(gctx, cfg.MetricsListen, h, log) })
	}
	g.Go(func() error { return sup.Run(gctx) })

	err = g.Wait()
	switch {
	case errors.Is(err, supervisor.ErrCleanExit):
		log.Info("process exited cleanly, stopping")
		return nil
	case err != nil:
		return err
	}
	log.Info("shutting down")
	return nil
}

// warnLogsInWatchedDir flags child log files that would feed back into the
// file watcher and restart the process on every write.
func warnLogsInWatchedDir(log *slog.Logger, spec process.Spec) {
	f := spec.Log.File
	for _, p := range []string{f.Dir, f.StdoutPath, f.StderrPath} {
		if p != "" && insideDir(spec.Dir, p) {
			log.Warn("child log output is inside the watched directory", "path", p)
		}
	}
}

func insideDir(dir, p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
