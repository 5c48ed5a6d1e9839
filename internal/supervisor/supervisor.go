// Package supervisor keeps one managed process alive.
//
// Three monitors run concurrently and share the process through a single
// mutex; every read or mutation of the process happens while holding it:
//
//   - the exit monitor polls for exits every RecheckDelay and applies the
//     exit policy;
//   - the file monitor (WatchFiles) scans the executable's directory every
//     RecheckDelay and restarts the process after a change;
//   - the force monitor (ForceRestartDelay > 0) restarts the process on a
//     fixed period regardless of its health.
//
// Monitors are not ordered beyond the lock. A file-change restart and a forced
// restart that fire together both run to completion one after the other, so
// the child may be restarted twice in quick succession.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/procwatch/internal/detector"
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/process"
	"golang.org/x/sync/errgroup"
)

// ErrCleanExit ends Run when the child exits successfully while
// OnlyNonZeroExit is set. It is not a failure.
var ErrCleanExit = errors.New("process exited cleanly")

type Options struct {
	RecheckDelay      time.Duration // exit and file polling interval
	RestartDelay      time.Duration // pause between stop and start on file changes
	ForceRestartDelay time.Duration // 0 disables the force monitor
	WatchFiles        bool
	Recursive         bool
	// DisableNotify turns off fsnotify wake-ups; the file monitor then only polls.
	DisableNotify bool
}

type Supervisor struct {
	mu   sync.Mutex
	proc *process.ManagedProcess

	opts Options
	dir  string
	name string
	log  *slog.Logger
}

func New(proc *process.ManagedProcess, opts Options, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	spec := proc.Spec()
	return &Supervisor{
		proc: proc,
		opts: opts,
		dir:  spec.Dir,
		name: spec.Name,
		log:  log,
	}
}

// Start performs the initial start. Its error is always fatal.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Start()
}

// Stop performs a final stop, typically after Run returned.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Stop()
}

// Status returns a snapshot of the managed process.
func (s *Supervisor) Status() process.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Status()
}

// PID returns the pid of the running child or 0.
func (s *Supervisor) PID() int {
	st := s.Status()
	if !st.Running {
		return 0
	}
	return st.PID
}

// Run drives the monitors until ctx ends, the child exits cleanly with
// OnlyNonZeroExit set (ErrCleanExit), or a restart hits a setup error
// (*process.SetupError). A cancelled ctx returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.exitMonitor(gctx) })
	g.Go(func() error { return s.fileMonitor(gctx) })
	g.Go(func() error { return s.forceMonitor(gctx) })
	return g.Wait()
}

// finish maps a restart error onto the monitor's return value.
func finish(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (s *Supervisor) exitMonitor(ctx context.Context) error {
	for {
		s.mu.Lock()
		out, err := s.proc.CheckExit(ctx)
		s.mu.Unlock()
		if err != nil {
			return finish(ctx, err)
		}
		switch out {
		case process.OutcomeRestarted:
			metrics.IncRestart(s.name, metrics.TriggerExit)
		case process.OutcomeTerminal:
			return ErrCleanExit
		}
		if process.Sleep(ctx, s.opts.RecheckDelay) != nil {
			return nil
		}
	}
}

func (s *Supervisor) fileMonitor(ctx context.Context) error {
	if !s.opts.WatchFiles {
		return nil
	}
	dopts := detector.Options{Recursive: s.opts.Recursive}
	snap := detector.NewSnapshot()

	var wake <-chan struct{}
	if !s.opts.DisableNotify {
		n, err := detector.NewNotifier(s.dir, dopts, s.log)
		if err != nil {
			s.log.Warn("file notifications unavailable, polling only", "dir", s.dir, "error", err)
		} else {
			defer func() { _ = n.Close() }()
			go n.Run(ctx)
			wake = n.Wake()
		}
	}

	s.log.Info("watching files", "dir", s.dir, "recursive", s.opts.Recursive, "interval", s.opts.RecheckDelay)
	for {
		changed, err := detector.Scan(s.dir, snap, dopts)
		if err != nil {
			s.log.Warn("scan failed", "dir", s.dir, "error", err)
		} else if changed {
			s.log.Info("file changes detected", "dir", s.dir)
			metrics.IncDetectorChange(s.dir)
			s.mu.Lock()
			restarted, err := s.proc.Restart(ctx, s.opts.RestartDelay)
			s.mu.Unlock()
			if err != nil {
				return finish(ctx, err)
			}
			if restarted {
				metrics.IncRestart(s.name, metrics.TriggerFiles)
			}
		}
		if !waitOrWake(ctx, s.opts.RecheckDelay, wake) {
			return nil
		}
	}
}

func (s *Supervisor) forceMonitor(ctx context.Context) error {
	if s.opts.ForceRestartDelay <= 0 {
		return nil
	}
	for {
		if process.Sleep(ctx, s.opts.ForceRestartDelay) != nil {
			return nil
		}
		s.log.Info("forcing restart", "every", s.opts.ForceRestartDelay)
		s.mu.Lock()
		restarted, err := s.proc.Restart(ctx, 0)
		s.mu.Unlock()
		if err != nil {
			return finish(ctx, err)
		}
		if restarted {
			metrics.IncRestart(s.name, metrics.TriggerForce)
		}
	}
}

// waitOrWake blocks for d, until wake fires, or until ctx ends. It reports
// false only when ctx ended.
func waitOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-wake:
		return true
	}
}
