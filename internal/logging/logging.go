// Package logging is the leveled logger shared by the service, the CLI and
// the session runner.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// Logger takes a message followed by key/value pairs.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type gommonLogger struct {
	l *log.Logger
}

var _ Logger = (*gommonLogger)(nil)

// New returns a JSON-line logger writing to w at the given level
// ("debug", "info", "warn", "error", "off").
func New(prefix, level string, w io.Writer) Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	l.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)
	return &gommonLogger{l: l}
}

func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}

func (g *gommonLogger) Debug(msg string, kv ...any) { g.l.Debugj(fields(msg, kv)) }
func (g *gommonLogger) Info(msg string, kv ...any)  { g.l.Infoj(fields(msg, kv)) }
func (g *gommonLogger) Warn(msg string, kv ...any)  { g.l.Warnj(fields(msg, kv)) }
func (g *gommonLogger) Error(msg string, kv ...any) { g.l.Errorj(fields(msg, kv)) }

// fields turns msg and alternating key/value pairs into a JSON object.
// A dangling key is kept with a nil value; errors are logged by message.
func fields(msg string, kv []any) log.JSON {
	j := log.JSON{"message": msg}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var v any
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		j[key] = v
	}
	return j
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger { return nop{} }
