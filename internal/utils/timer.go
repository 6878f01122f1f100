package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Durations above which a finished operation is logged at a higher level.
const (
	SlowOperationInfo = 10 * time.Second
	SlowOperationWarn = 30 * time.Second
)

// Timer is a simple performance timer for measuring operation duration
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		now:   time.Now,
	}
}

// Stop logs the elapsed duration at Debug, escalating slow operations.
func (t *Timer) Stop() time.Duration {
	return t.StopWithFields(nil)
}

// StopWithFields stops the timer and logs with additional context
func (t *Timer) StopWithFields(fields map[string]interface{}) time.Duration {
	duration := t.now().Sub(t.start)

	var event *zerolog.Event
	switch {
	case duration > SlowOperationWarn:
		event = t.log.Warn()
	case duration > SlowOperationInfo:
		event = t.log.Info()
	default:
		event = t.log.Debug()
	}

	event.
		Str("operation", t.name).
		Dur("duration", duration).
		Fields(fields).
		Msg("Operation completed")

	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() {
		t.Stop()
	}
}
