package process

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExist is reported when the executable vanished before a start.
	ErrNotExist = errors.New("executable does not exist")
	// ErrAlreadyRunning is returned by Start while a live handle is held.
	ErrAlreadyRunning = errors.New("process already running")
)

// SetupError marks an unrecoverable environment problem: the executable is
// missing or cannot be spawned. Supervision must end when one is returned.
type SetupError struct {
	Op   string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err (or anything it wraps) is a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
