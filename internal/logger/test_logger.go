package logger

import (
	"fmt"
	"maps"
	"sync"
)

type TestLogEntry struct {
	Level   string
	Message string
	Fields  Fields
}

type entryLog struct {
	mu      sync.RWMutex
	entries []TestLogEntry
}

// TestLogger records entries in memory. Loggers derived with WithField and
// friends share one record with their parent.
type TestLogger struct {
	log    *entryLog
	fields Fields
}

func NewTestLogger() *TestLogger {
	return &TestLogger{log: &entryLog{}, fields: Fields{}}
}

func (l *TestLogger) record(level string, args []any) {
	fields := maps.Clone(l.fields)

	l.log.mu.Lock()
	defer l.log.mu.Unlock()
	l.log.entries = append(l.log.entries, TestLogEntry{
		Level:   level,
		Message: fmt.Sprint(args...),
		Fields:  fields,
	})
}

func (l *TestLogger) Trace(args ...any) { l.record("trace", args) }
func (l *TestLogger) Debug(args ...any) { l.record("debug", args) }
func (l *TestLogger) Info(args ...any) { l.record("info", args) }
func (l *TestLogger) Warn(args ...any) { l.record("warn", args) }
func (l *TestLogger) Error(args ...any) { l.record("error", args) }
func (l *TestLogger) Fatal(args ...any) { l.record("fatal", args) }

func (l *TestLogger) WithFields(fields Fields) Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return &TestLogger{log: l.log, fields: merged}
}

func (l *TestLogger) WithField(key string, value any) Logger {
	return l.WithFields(Fields{key: value})
}

func (l *TestLogger) WithError(err error) Logger {
	return l.WithFields(Fields{"error": err})
}

func (l *TestLogger) GetEntries() []TestLogEntry {
	l.log.mu.RLock()
	defer l.log.mu.RUnlock()
	return append([]TestLogEntry(nil), l.log.entries...)
}

func (l *TestLogger) Clear() {
	l.log.mu.Lock()
	defer l.log.mu.Unlock()
	l.log.entries = nil
}

// Entry returns the first entry with the level and message.
func (l *TestLogger) Entry(level, message string) (TestLogEntry, bool) {
	for _, entry := range l.GetEntries() {
		if entry.Level == level && entry.Message == message {
			return entry, true
		}
	}
	return TestLogEntry{}, false
}

func (l *TestLogger) HasEntry(level, message string) bool {
	_, ok := l.Entry(level, message)
	return ok
}

func (l *TestLogger) CountEntries() int {
	l.log.mu.RLock()
	defer l.log.mu.RUnlock()
	return len(l.log.entries)
}
