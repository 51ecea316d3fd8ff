// Package logging provides prefixed loggers with colored level tags, in the
// "[APP] [INFO] message" form used across the binaries.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel accepts debug, info, warn/warning and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Prefix colors for the different components.
var (
	ColorApp        = aurora.GreenFg
	ColorExperiment = aurora.CyanFg
	ColorServer     = aurora.MagentaFg
	ColorPolicy     = aurora.BlueFg
)

type Logger struct {
	out    *log.Logger
	prefix string
	color  aurora.Color
	au     aurora.Aurora
	level  Level
}

type Option func(*Logger)

// WithColors forces colored output on or off. Colors are on by default
// unless NO_COLOR is set.
func WithColors(enabled bool) Option {
	return func(l *Logger) {
		l.au = aurora.NewAurora(enabled)
	}
}

func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// New creates a logger writing "[PREFIX] [LEVEL] msg" lines to w.
func New(prefix string, color aurora.Color, w io.Writer, opts ...Option) *Logger {
	_, noColor := os.LookupEnv("NO_COLOR")
	l := &Logger{
		out:    log.New(w, "", log.LstdFlags),
		prefix: prefix,
		color:  color,
		au:     aurora.NewAurora(!noColor),
		level:  LevelInfo,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Info(msg string) {
	l.logf(LevelInfo, "%s", msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warn(msg string) {
	l.logf(LevelWarn, "%s", msg)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Error(msg string) {
	l.logf(LevelError, "%s", msg)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	prefix := l.au.Colorize("["+l.prefix+"]", l.color)
	l.out.Printf("%s %s %s", prefix, l.tag(level), fmt.Sprintf(format, args...))
}

func (l *Logger) tag(level Level) aurora.Value {
	tag := "[" + level.String() + "]"
	switch level {
	case LevelDebug:
		return l.au.Gray(12, tag)
	case LevelInfo:
		return l.au.Green(tag)
	case LevelWarn:
		return l.au.Yellow(tag)
	default:
		return l.au.Red(tag)
	}
}
