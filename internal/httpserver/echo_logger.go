package httpserver

import (
	"fmt"
	"io"
	"sync"

	echolog "github.com/labstack/gommon/log"

	"github.com/tphakala/birdweather-sync/internal/logger"
)

// echoLogger routes echo's internal logging (startup errors, recovered
// panics) into the structured logger.
type echoLogger struct {
	log logger.Logger

	mu     sync.RWMutex
	prefix string
	level  echolog.Lvl
}

func newEchoLogger(log logger.Logger) *echoLogger {
	return &echoLogger{log: log, level: echolog.INFO}
}

func (l *echoLogger) Output() io.Writer      { return io.Discard }
func (l *echoLogger) SetOutput(io.Writer)    {}
func (l *echoLogger) SetHeader(string)       {}
func (l *echoLogger) Prefix() string         { l.mu.RLock(); defer l.mu.RUnlock(); return l.prefix }
func (l *echoLogger) SetPrefix(p string)     { l.mu.Lock(); l.prefix = p; l.mu.Unlock() }
func (l *echoLogger) Level() echolog.Lvl     { l.mu.RLock(); defer l.mu.RUnlock(); return l.level }
func (l *echoLogger) SetLevel(v echolog.Lvl) { l.mu.Lock(); l.level = v; l.mu.Unlock() }

func (l *echoLogger) enabled(v echolog.Lvl) bool {
	cur := l.Level()
	return cur != echolog.OFF && v >= cur
}

func (l *echoLogger) emit(v echolog.Lvl, msg string, fields ...logger.Field) {
	if !l.enabled(v) {
		return
	}
	if p := l.Prefix(); p != "" {
		fields = append(fields, logger.String("prefix", p))
	}
	switch v {
	case echolog.DEBUG:
		l.log.Debug(msg, fields...)
	case echolog.WARN:
		l.log.Warn(msg, fields...)
	case echolog.ERROR:
		l.log.Error(msg, fields...)
	default:
		l.log.Info(msg, fields...)
	}
}

func (l *echoLogger) emitJSON(v echolog.Lvl, j echolog.JSON) {
	fields := make([]logger.Field, 0, len(j))
	for k, val := range j {
		fields = append(fields, logger.Any(k, val))
	}
	l.emit(v, "echo", fields...)
}

func (l *echoLogger) Print(i ...any)                 { l.emit(echolog.INFO, fmt.Sprint(i...)) }
func (l *echoLogger) Printf(format string, a ...any) { l.emit(echolog.INFO, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Printj(j echolog.JSON)          { l.emitJSON(echolog.INFO, j) }
func (l *echoLogger) Debug(i ...any)                 { l.emit(echolog.DEBUG, fmt.Sprint(i...)) }
func (l *echoLogger) Debugf(format string, a ...any) {
	l.emit(echolog.DEBUG, fmt.Sprintf(format, a...))
}
func (l *echoLogger) Debugj(j echolog.JSON)         { l.emitJSON(echolog.DEBUG, j) }
func (l *echoLogger) Info(i ...any)                 { l.emit(echolog.INFO, fmt.Sprint(i...)) }
func (l *echoLogger) Infof(format string, a ...any) { l.emit(echolog.INFO, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Infoj(j echolog.JSON)          { l.emitJSON(echolog.INFO, j) }
func (l *echoLogger) Warn(i ...any)                 { l.emit(echolog.WARN, fmt.Sprint(i...)) }
func (l *echoLogger) Warnf(format string, a ...any) { l.emit(echolog.WARN, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Warnj(j echolog.JSON)          { l.emitJSON(echolog.WARN, j) }
func (l *echoLogger) Error(i ...any)                { l.emit(echolog.ERROR, fmt.Sprint(i...)) }
func (l *echoLogger) Errorf(format string, a ...any) {
	l.emit(echolog.ERROR, fmt.Sprintf(format, a...))
}
func (l *echoLogger) Errorj(j echolog.JSON) { l.emitJSON(echolog.ERROR, j) }

// Fatal and Panic never exit the process; the recover middleware turns the
// panic into a 500.
func (l *echoLogger) Fatal(i ...any)                 { l.Panic(i...) }
func (l *echoLogger) Fatalf(format string, a ...any) { l.Panicf(format, a...) }
func (l *echoLogger) Fatalj(j echolog.JSON)          { l.Panicj(j) }

func (l *echoLogger) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	l.log.Error(msg)
	panic(msg)
}

func (l *echoLogger) Panicf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	l.log.Error(msg)
	panic(msg)
}

func (l *echoLogger) Panicj(j echolog.JSON) {
	l.emitJSON(echolog.ERROR, j)
	panic(fmt.Sprint(j))
}
