package logging

import "github.com/rs/zerolog"

// DispatcherLogger writes the dispatcher's command records into the zerolog
// stream shared with the storage and telemetry layers. Every record carries
// component=dispatcher so REPL commands can be told apart from store activity
// in the same log file.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger tags logger for dispatcher records.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

// Debug records per-command progress (handling, complete).
func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

// Info records lifecycle messages.
func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

// Error records failed commands, including dropped or failed queued hovers.
func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l *DispatcherLogger) write(ev *zerolog.Event, msg string, keysAndValues []any) {
	if ev == nil {
		return
	}
	ev.Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields pairs keys with values. A non-string key is dropped with its value;
// a trailing value without a key is kept under "extra".
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	if len(keysAndValues)%2 == 1 {
		fields["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return fields
}
