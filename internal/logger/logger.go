package logger

type Fields map[string]any

type Logger interface {
	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	WithFields(fields Fields) Logger
	WithField(key string, value any) Logger
	WithError(err error) Logger
}

const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
)

// Component tags every entry of l with the subsystem that wrote it.
func Component(l Logger, name string) Logger {
	return l.WithField(FieldComponent, name)
}
