package logger

import "minhton/internal/domain"

// Field is a structured (key, value) log field.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured-logging interface used across the
// overlay; concrete backends (e.g. the zap adapter) implement it.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a concise constructor for a Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode renders a domain.NodeInfo as a structured field.
func FNode(key string, n domain.NodeInfo) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":       n.ID.String(),
			"position": n.Position.String(),
			"addr":     n.Network.String(),
		},
	}
}

// FPosition renders a domain.LogicalPosition as a structured field.
func FPosition(key string, p domain.LogicalPosition) Field {
	return Field{Key: key, Val: p.String()}
}

// NopLogger is a Logger that discards everything; the default when
// logging is inactive.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
