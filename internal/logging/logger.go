// Package logging defines the structured logging surface shared by the
// pipeline stages. Components take a Logger, not a logrus instance, so
// tests can capture entries and the CLI can swap formats.
package logging

// Field is one key-value pair attached to a log entry. Keys come from
// the constants in fields.go so runs can be filtered by email, user,
// or stage.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logger every stage receives. Derived
// loggers (WithError, WithField, WithFields) carry their context into
// every subsequent entry without mutating the parent.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	WithError(err error) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields ...Field) Logger

	Fatal(msg string, fields ...Field)
	Fatalf(msg string, args ...interface{})
}
