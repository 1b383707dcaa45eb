package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path for a CLI run, e.g.
// wimlogs/wim.render.20260212_213836.log.
func LogFilePath(logsDir, command string, started time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("wim.%s.%s.log", command, started.Format("20060102_150405")),
	)
}
