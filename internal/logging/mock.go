package logging

import "fmt"

// LogEntry is one captured log line.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

// MockLogger captures entries for test assertions. Derived loggers
// (WithError, WithField, WithFields) append to the same capture buffer
// as their parent, so a test always sees every entry regardless of
// which derived logger wrote it.
type MockLogger struct {
	entries *[]LogEntry
	err     error
	fields  []Field
}

// NewMockLogger returns an empty capturing logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{entries: &[]LogEntry{}}
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	all := make([]Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	*m.entries = append(*m.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  all,
		Error:   m.err,
	})
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

// Fatal records the entry without exiting.
func (m *MockLogger) Fatal(msg string, fields ...Field) { m.record("FATAL", msg, fields) }

// Fatalf records the formatted entry without exiting.
func (m *MockLogger) Fatalf(msg string, args ...interface{}) {
	m.record("FATAL", fmt.Sprintf(msg, args...), nil)
}

func (m *MockLogger) WithError(err error) Logger {
	return &MockLogger{entries: m.entries, err: err, fields: m.fields}
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Field{Key: key, Value: value})
}

func (m *MockLogger) WithFields(fields ...Field) Logger {
	all := make([]Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	return &MockLogger{entries: m.entries, err: m.err, fields: all}
}

// Entries returns all captured entries, from every derived logger.
func (m *MockLogger) Entries() []LogEntry {
	return *m.entries
}

// EntriesByLevel returns the captured entries at one level.
func (m *MockLogger) EntriesByLevel(level string) []LogEntry {
	var out []LogEntry
	for _, e := range *m.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasEntry reports whether an entry with the level and message exists.
func (m *MockLogger) HasEntry(level, message string) bool {
	for _, e := range *m.entries {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// FieldValue returns the value of the named field on the first entry
// carrying it.
func (m *MockLogger) FieldValue(key string) (interface{}, bool) {
	for _, e := range *m.entries {
		for _, f := range e.Fields {
			if f.Key == key {
				return f.Value, true
			}
		}
	}
	return nil, false
}
