package log

// Logger receives protocol events.
// Pass nil or NoopLogger to disable capture.
type Logger interface {
	// Log records one event. Implementations must be safe for concurrent
	// use and must not block: the receive and telemetry tasks call Log
	// inline.
	Log(event Event)
}

// NoopLogger discards all events. Usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}

// OrNoop returns l, or NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
