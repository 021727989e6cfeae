package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"safetyvision/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	infoLog    *logrus.Logger
	warningLog *logrus.Logger
	errorLog   *logrus.Logger
	files      map[string]*lumberjack.Logger
	logDir     string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := &Logger{
		logDir: config.LogDirectory,
		files:  make(map[string]*lumberjack.Logger, 3),
	}
	l.infoLog = l.newLevelLogger(InfoFile, os.Stdout, logrus.InfoLevel)
	l.warningLog = l.newLevelLogger(WarningFile, os.Stdout, logrus.WarnLevel)
	l.errorLog = l.newLevelLogger(ErrorFile, os.Stderr, logrus.ErrorLevel)
	return l
}

func (l *Logger) newLevelLogger(fileName string, console io.Writer, level logrus.Level) *logrus.Logger {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, fileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	l.files[fileName] = file

	out := logrus.New()
	out.SetOutput(io.MultiWriter(console, file))
	out.SetLevel(level)
	out.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	return out
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Errorf(format, v...)
}

// CleanLogs truncates one of the level files. The rotating writer reopens it on the next write.
func (l *Logger) CleanLogs(fileName string) error {
	file, ok := l.files[fileName]
	if !ok {
		return fmt.Errorf("unknown log file %q", fileName)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", fileName, err)
	}
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate %s: %w", fileName, err)
	}

	l.Info("%s has been cleared", fileName)
	return nil
}

// Close flushes and closes every log file.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dir returns the directory holding the level files.
func (l *Logger) Dir() string {
	return l.logDir
}
