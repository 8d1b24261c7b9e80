package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// errorLogRetention is how long recorded tool failures are kept before
// rotation drops them
const errorLogRetention = 60 * 24 * time.Hour

// ErrorLogEntry is one failed tool call, stored as a JSON line
type ErrorLogEntry struct {
	Timestamp string         `json:"timestamp"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Error     string         `json:"error"`
	Transport string         `json:"transport,omitempty"`
}

// ToolErrorLogger appends failed tool calls to a JSON-lines file so client
// sessions can be debugged after the fact. Disabled unless LOG_TOOL_ERRORS
// is set to "true".
type ToolErrorLogger struct {
	enabled bool
	logger  *logrus.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// InitGlobalErrorLogger builds the global error logger once. With
// LOG_TOOL_ERRORS unset the logger exists but records nothing.
func InitGlobalErrorLogger(logger *logrus.Logger) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		if os.Getenv("LOG_TOOL_ERRORS") != "true" {
			globalErrorLogger = &ToolErrorLogger{logger: logger}
			return
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		logDir := filepath.Join(homeDir, ".pdfblocks", "logs")
		if err := os.MkdirAll(logDir, 0700); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		path := filepath.Join(logDir, "tool-errors.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			initErr = fmt.Errorf("failed to open tool error log: %w", err)
			return
		}

		globalErrorLogger = &ToolErrorLogger{
			enabled: true,
			logger:  logger,
			file:    file,
			path:    path,
		}

		// Rotation reads the whole file, keep it off the startup path
		go func() {
			if err := globalErrorLogger.dropExpiredEntries(); err != nil {
				logger.WithError(err).Warn("Failed to rotate tool error log")
			}
		}()

		logger.Infof("Tool error logging enabled: %s", path)
	})
	return initErr
}

// GetGlobalErrorLogger returns the global error logger, or a disabled one
// when InitGlobalErrorLogger has not run
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// IsEnabled reports whether failed calls are being recorded
func (l *ToolErrorLogger) IsEnabled() bool {
	return l.enabled
}

// LogFilePath returns where entries are written, empty when disabled
func (l *ToolErrorLogger) LogFilePath() string {
	return l.path
}

// LogToolError records one failed tool call with the arguments that caused it
func (l *ToolErrorLogger) LogToolError(toolName string, args map[string]any, err error, transport string) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	line, marshalErr := json.Marshal(ErrorLogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		ToolName:  toolName,
		Arguments: args,
		Error:     err.Error(),
		Transport: transport,
	})
	if marshalErr != nil {
		l.logger.WithError(marshalErr).Error("Failed to marshal tool error entry")
		return
	}

	if _, writeErr := l.file.Write(append(line, '\n')); writeErr != nil {
		l.logger.WithError(writeErr).Error("Failed to write tool error entry")
		return
	}
	if syncErr := l.file.Sync(); syncErr != nil {
		l.logger.WithError(syncErr).Error("Failed to sync tool error log")
	}
}

// Close releases the log file
func (l *ToolErrorLogger) Close() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// dropExpiredEntries rewrites the log without entries older than the
// retention window. The file handle is closed for the rewrite and reopened
// after the atomic rename; LogToolError blocks on the mutex for the
// duration, so no entry can land in the file being replaced.
func (l *ToolErrorLogger) dropExpiredEntries() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close tool error log for rotation: %w", err)
		}
		l.file = nil
	}

	kept, err := l.retainedLines()
	if err != nil {
		if reopenErr := l.reopen(); reopenErr != nil {
			return reopenErr
		}
		return err
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(kept, "\n")+"\n"), 0600); err != nil {
		_ = l.reopen()
		return fmt.Errorf("failed to write rotated tool error log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		_ = l.reopen()
		return fmt.Errorf("failed to replace tool error log: %w", err)
	}

	return l.reopen()
}

// retainedLines returns the log lines young enough to keep. Lines that do
// not parse are kept rather than silently dropped.
func (l *ToolErrorLogger) retainedLines() ([]string, error) {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tool error log: %w", err)
	}
	defer func() { _ = file.Close() }()

	cutoff := time.Now().Add(-errorLogRetention)
	var kept []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry ErrorLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			kept = append(kept, line)
			continue
		}
		when, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || when.After(cutoff) {
			kept = append(kept, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tool error log: %w", err)
	}
	return kept, nil
}

// reopen reattaches the append handle after rotation. Caller holds the mutex.
func (l *ToolErrorLogger) reopen() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen tool error log: %w", err)
	}
	l.file = file
	return nil
}
