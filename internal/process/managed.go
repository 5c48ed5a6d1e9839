package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// EventType names a lifecycle transition of the managed process.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventExit  EventType = "exit"
)

// Event is emitted to the observer after each transition.
type Event struct {
	Type       EventType
	Name       string
	PID        int
	ExitCode   int // only meaningful for EventExit
	Success    bool
	OccurredAt time.Time
}

// ExitOutcome is the result of one CheckExit poll.
type ExitOutcome int

const (
	OutcomeRunning   ExitOutcome = iota // child still alive
	OutcomeNoProcess                    // nothing to poll
	OutcomePollError                    // exit status unavailable; handle kept
	OutcomeRestarted                    // child exited and was started again
	OutcomeTerminal                     // clean exit with OnlyNonZeroExit set
)

func (o ExitOutcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeNoProcess:
		return "no_process"
	case OutcomePollError:
		return "poll_error"
	case OutcomeRestarted:
		return "restarted"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// handle is present only while a child is believed to be running.
type handle struct {
	cmd       *exec.Cmd
	done      chan struct{} // closed once cmd.Wait returns
	waitErr   error         // set before done is closed
	startedAt time.Time
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ManagedProcess owns the OS handle of the supervised child.
//
// It is not safe for concurrent use: callers serialize every method behind a
// single lock (see supervisor.Supervisor).
type ManagedProcess struct {
	spec     Spec
	handle   *handle
	log      *slog.Logger
	observer func(Event)
	kill     func(*exec.Cmd) error

	starts    int
	exits     int
	lastExit  *int
	stoppedAt time.Time
}

// Option customizes a ManagedProcess.
type Option func(*ManagedProcess)

func WithLogger(l *slog.Logger) Option {
	return func(m *ManagedProcess) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver registers fn to receive lifecycle events. fn runs on the
// caller's goroutine while the supervisor lock is held and must return quickly.
func WithObserver(fn func(Event)) Option {
	return func(m *ManagedProcess) { m.observer = fn }
}

func New(spec Spec, opts ...Option) *ManagedProcess {
	m := &ManagedProcess{spec: spec, log: slog.Default(), kill: killProcess}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("name", spec.Name)
	return m
}

func (m *ManagedProcess) Spec() Spec { return m.spec }

// Running reports whether a handle is held.
func (m *ManagedProcess) Running() bool { return m.handle != nil }

// Start spawns the executable inside its directory and records the handle.
// Any failure is a *SetupError except ErrAlreadyRunning.
func (m *ManagedProcess) Start() error {
	if m.handle != nil && !m.handle.exited() {
		return ErrAlreadyRunning
	}
	full := m.spec.Path()
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = ErrNotExist
		}
		return &SetupError{Op: "stat", Path: full, Err: err}
	}

	// #nosec G204 -- the executable is the operator-supplied target
	cmd := exec.Command(full)
	cmd.Dir = m.spec.Dir
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	configureSysProcAttr(cmd)

	var closers []io.Closer
	if m.spec.Log.File.Enabled() {
		outW, errW, err := m.spec.Log.ProcessWriters(m.spec.Name)
		if err != nil {
			return &SetupError{Op: "open log", Path: full, Err: err}
		}
		if outW != nil {
			cmd.Stdout = outW
			closers = append(closers, outW)
		}
		if errW != nil {
			cmd.Stderr = errW
			closers = append(closers, errW)
		}
	}

	if err := cmd.Start(); err != nil {
		closeAll(closers)
		return &SetupError{Op: "spawn", Path: full, Err: err}
	}

	h := &handle{cmd: cmd, done: make(chan struct{}), startedAt: time.Now()}
	go func() {
		h.waitErr = cmd.Wait()
		closeAll(closers)
		close(h.done)
	}()
	m.handle = h
	m.starts++

	m.log.Info("process started", "pid", cmd.Process.Pid, "path", full)
	m.emit(Event{Type: EventStart, PID: cmd.Process.Pid})
	return nil
}

// Stop kills the child. It returns false without side effects when there is
// no handle, when the kill fails, or when the child is not reaped within the
// stop timeout; the handle is then left in place for a later Stop or CheckExit.
func (m *ManagedProcess) Stop() bool {
	h := m.handle
	if h == nil {
		m.log.Info("no process")
		return false
	}
	pid := h.cmd.Process.Pid
	if !h.exited() {
		if err := m.kill(h.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			m.log.Error("failed to terminate process", "pid", pid, "error", err)
			return false
		}
		t := time.NewTimer(m.spec.stopTimeout())
		select {
		case <-h.done:
			t.Stop()
		case <-t.C:
			m.log.Warn("process not reaped within stop timeout", "pid", pid, "timeout", m.spec.stopTimeout())
			return false
		}
	}
	m.handle = nil
	m.stoppedAt = time.Now()
	m.log.Info("process stopped", "pid", pid)
	m.emit(Event{Type: EventStop, PID: pid})
	return true
}

// CheckExit polls the child without blocking. When it has exited the exit
// policy decides between restarting after RestartDelay and OutcomeTerminal.
// A returned error is either a *SetupError from the restart or ctx.Err()
// when ctx ended during the restart pause.
func (m *ManagedProcess) CheckExit(ctx context.Context) (ExitOutcome, error) {
	h := m.handle
	if h == nil {
		return OutcomeNoProcess, nil
	}
	if !h.exited() {
		return OutcomeRunning, nil
	}
	pid := h.cmd.Process.Pid
	state := h.cmd.ProcessState
	if state == nil {
		m.log.Error("error waiting", "pid", pid, "error", h.waitErr)
		return OutcomePollError, nil
	}

	code := state.ExitCode()
	success := state.Success()
	m.handle = nil
	m.exits++
	m.lastExit = &code
	m.stoppedAt = time.Now()
	m.log.Info("process exited", "pid", pid, "exit_code", code, "state", state.String())
	m.emit(Event{Type: EventExit, PID: pid, ExitCode: code, Success: success})

	if Decide(success, m.spec.OnlyNonZeroExit) == DecisionTerminate {
		m.log.Info("clean exit with only-non-zero-exit set, ending supervision")
		return OutcomeTerminal, nil
	}
	if err := Sleep(ctx, m.spec.RestartDelay); err != nil {
		return OutcomeNoProcess, err
	}
	if err := m.Start(); err != nil {
		return OutcomeNoProcess, err
	}
	return OutcomeRestarted, nil
}

// Restart stops the child and, only if that succeeded, starts it again after
// delay. It reports whether a new child was started.
func (m *ManagedProcess) Restart(ctx context.Context, delay time.Duration) (bool, error) {
	if !m.Stop() {
		return false, nil
	}
	if err := Sleep(ctx, delay); err != nil {
		return false, err
	}
	if err := m.Start(); err != nil {
		return false, err
	}
	return true, nil
}

// Status returns a snapshot of the current state.
func (m *ManagedProcess) Status() Status {
	st := Status{
		Name:      m.spec.Name,
		Path:      m.spec.Path(),
		StoppedAt: m.stoppedAt,
		Starts:    m.starts,
		Exits:     m.exits,
	}
	if m.lastExit != nil {
		c := *m.lastExit
		st.LastExitCode = &c
	}
	if h := m.handle; h != nil {
		st.Running = !h.exited()
		st.PID = h.cmd.Process.Pid
		st.StartedAt = h.startedAt
	}
	return st
}

func (m *ManagedProcess) emit(e Event) {
	if m.observer == nil {
		return
	}
	e.Name = m.spec.Name
	e.OccurredAt = time.Now()
	m.observer(e)
}

// Sleep pauses for d or until ctx ends. A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
