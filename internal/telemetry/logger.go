// Package telemetry provides the daemon's structured event log and its
// Prometheus metrics surface.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the console renderer the teacher uses for interactive runs.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LoggerConfig configures the event logger.
type LoggerConfig struct {
	Level  string
	Format Format
	Output io.Writer
}

// Logger wraps zerolog for pathsteerd's log stream: one JSON object per line
// carrying zerolog's "time" field, the run id as "run", and "event". Event
// writes its data fields at the top level of the line; they are not nested
// under a separate "data" object.
type Logger struct {
	logger zerolog.Logger
	runID  string
}

// NewLogger builds a Logger that tags every line with the run id and writes
// to cfg.Output (stdout when unset). It does not open a log file itself.
func NewLogger(cfg LoggerConfig, runID string) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var out io.Writer = cfg.Output
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339, NoColor: false}
	}

	zlog := zerolog.New(out).With().Timestamp().Str("run", runID).Logger()
	switch cfg.Level {
	case "debug":
		zlog = zlog.Level(zerolog.DebugLevel)
	case "warn":
		zlog = zlog.Level(zerolog.WarnLevel)
	case "error":
		zlog = zlog.Level(zerolog.ErrorLevel)
	default:
		zlog = zlog.Level(zerolog.InfoLevel)
	}

	return &Logger{logger: zlog, runID: runID}
}

// Event logs a named occurrence with a flat key-value data payload, mirroring
// the daemon's log_event(name, data) calls.
func (l *Logger) Event(event string, fields map[string]interface{}) {
	e := l.logger.Info().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}

// Debug logs a debug-level message with key-value fields.
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.withFields(l.logger.Debug(), fields...).Msg(msg)
}

// Info logs an info-level message with key-value fields.
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.withFields(l.logger.Info(), fields...).Msg(msg)
}

// Warn logs a warn-level message with key-value fields.
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.withFields(l.logger.Warn(), fields...).Msg(msg)
}

// Error logs an error-level message with key-value fields.
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.withFields(l.logger.Error(), fields...).Msg(msg)
}

func (l *Logger) withFields(e *zerolog.Event, fields ...interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	return e
}

// RunID returns the run id this logger was bound to.
func (l *Logger) RunID() string {
	return l.runID
}
