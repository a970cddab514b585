package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const logTimeLayout = "20060102_150405"

// LogFilePath builds a per-run log file path. Separators follow the OS.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format(logTimeLayout)),
	)
}

// OpenLogFile creates logsDir if needed and opens the run's log file for
// appending. The caller owns the returned file.
func OpenLogFile(logsDir, appName string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	path := LogFilePath(logsDir, appName, sessionStart)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
