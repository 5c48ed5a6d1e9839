package process

import "time"

// Status is a point-in-time copy of the managed process state.
type Status struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	StoppedAt    time.Time `json:"stopped_at"`
	Starts       int       `json:"starts"`
	Exits        int       `json:"exits"`
	LastExitCode *int      `json:"last_exit_code,omitempty"`
}
