package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager owns the engine's slog logger and its sinks.
type SlogManager struct {
	logger *slog.Logger
	gelf   MessageWriter
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes logging. Records go to file when it is non-nil and to
// stdout otherwise. If graylog is non-nil every record is also sent there as
// a GELF message.
func (m *SlogManager) Setup(file io.Writer, level string, graylog MessageWriter) {
	lvl := parseLevel(level)
	m.gelf = graylog

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}
	if graylog != nil {
		handlers = append(handlers, NewGelfHandler(graylog, lvl))
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", level, "graylog", graylog != nil)
}

// Logger returns the configured slog.Logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close releases the GELF sink if it holds a connection.
func (m *SlogManager) Close() error {
	if c, ok := m.gelf.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
