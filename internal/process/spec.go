package process

import (
	"path/filepath"
	"time"

	"github.com/loykin/procwatch/internal/logger"
)

// DefaultStopTimeout bounds how long Stop waits for a killed child to be reaped.
const DefaultStopTimeout = 2 * time.Second

// Spec describes the single executable under supervision.
// Dir and Name are expected to come from config.Resolve, i.e. Dir is absolute
// and Name is a bare file name inside it.
type Spec struct {
	Dir             string        `json:"dir"`
	Name            string        `json:"name"`
	OnlyNonZeroExit bool          `json:"only_non_zero_exit"` // a clean exit ends supervision
	RestartDelay    time.Duration `json:"restart_delay"`      // pause before a restart; 0 restarts immediately
	StopTimeout     time.Duration `json:"stop_timeout"`       // wait for reaping after kill
	Log             logger.Config `json:"-"`                  // child stdout/stderr redirection
}

// Path returns the full executable path.
func (s Spec) Path() string { return filepath.Join(s.Dir, s.Name) }

func (s Spec) stopTimeout() time.Duration {
	if s.StopTimeout <= 0 {
		return DefaultStopTimeout
	}
	return s.StopTimeout
}
