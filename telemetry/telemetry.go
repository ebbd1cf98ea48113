// Package telemetry provides the process-wide task entry/exit probe and
// the colored performance-warning sink: task entry and exit emit a
// process-wide probe that is a no-op by default, and a performance
// warning is always both a colored terminal line and a structured log
// record.
package telemetry

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Event carries the (task_id, description, this_pointer) triple a probe
// needs to correlate entry and exit.
type Event struct {
	TaskID      uuid.UUID
	Description string
	Pointer     uintptr
}

// Probe is called on task entry and exit. It is a no-op by default; tests
// and benchmarks may override it to observe execution order.
var Probe func(event Event, entering bool) = func(Event, bool) {}

// Enter and Exit are small convenience wrappers around Probe used by the
// scheduler's worker loop.
func Enter(e Event) { Probe(e, true) }
func Exit(e Event)  { Probe(e, false) }

// WarnPerformance surfaces a performance warning as both a colored
// terminal line and a structured log record, never just one or the
// other.
func WarnPerformance(msg string, kv ...any) {
	color.Yellow("%s", msg)
	slog.Warn(msg, kv...)
}
