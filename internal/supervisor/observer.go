package supervisor

import (
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/process"
)

// RecordMetrics is a process observer feeding the lifecycle counters.
func RecordMetrics(e process.Event) {
	switch e.Type {
	case process.EventStart:
		metrics.IncStart(e.Name)
	case process.EventStop:
		metrics.IncStop(e.Name)
	case process.EventExit:
		metrics.IncExit(e.Name, e.Success)
	}
}

// Observers fans one event out to every non-nil observer in order.
func Observers(fns ...func(process.Event)) func(process.Event) {
	return func(e process.Event) {
		for _, fn := range fns {
			if fn != nil {
				fn(e)
			}
		}
	}
}
