// Package logging gives every NutriBot component a printf-style logger
// backed by the structured process logger.
package logging

import (
	"fmt"
	"os"
	"reflect"
	"sync/atomic"

	"github.com/darrellrafa/Nutribot/internal/observability"
)

// Logger is the contract components log through.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var process atomic.Pointer[observability.Logger]

func init() {
	process.Store(observability.NewLogger(observability.LogConfig{Level: "info", Output: os.Stderr}))
}

// Configure installs the process logger. Component loggers resolve the
// process logger on every call, so ones created earlier follow the change.
func Configure(cfg observability.LogConfig) *observability.Logger {
	logger := observability.NewLogger(cfg)
	process.Store(logger)
	return logger
}

// Base returns the current process logger.
func Base() *observability.Logger {
	return process.Load()
}

// NewComponentLogger returns a logger tagged with component=<name>.
func NewComponentLogger(component string) Logger {
	return &printfLogger{component: component, sink: Base}
}

// FromObservabilityWithComponent pins a logger to a specific sink instead
// of the process logger.
func FromObservabilityWithComponent(logger *observability.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	return &printfLogger{component: component, sink: func() *observability.Logger { return logger }}
}

type printfLogger struct {
	component string
	sink      func() *observability.Logger
}

func (l *printfLogger) target() *observability.Logger {
	logger := l.sink()
	if l.component != "" {
		logger = logger.With("component", l.component)
	}
	return logger
}

func (l *printfLogger) Debug(format string, args ...any) {
	l.target().Debug(fmt.Sprintf(format, args...))
}

func (l *printfLogger) Info(format string, args ...any) {
	l.target().Info(fmt.Sprintf(format, args...))
}

func (l *printfLogger) Warn(format string, args ...any) {
	l.target().Warn(fmt.Sprintf(format, args...))
}

func (l *printfLogger) Error(format string, args ...any) {
	l.target().Error(fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

// IsNil also catches typed nil pointers stored in the interface.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	v := reflect.ValueOf(logger)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}

// OrNop substitutes Nop for a nil logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}
