// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	// With returns a child logger tagged with the given component name.
	With(component string) Logger
}

// Config for the logger
type Config struct {
	Level   string
	Output  io.Writer
	Service string
}

type zeroLogger struct {
	log zerolog.Logger
}

// New creates a zerolog backed logger for the given service name.
func New(service string) Logger {
	return NewWithConfig(Config{Service: service})
}

// NewWithConfig creates a logger from the given config. Unknown levels fall back to info.
func NewWithConfig(config Config) Logger {
	level := zerolog.InfoLevel
	if config.Level != "" {
		if parsed, err := zerolog.ParseLevel(config.Level); err == nil {
			level = parsed
		}
	}

	out := config.Output
	if out == nil {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(level).With().Timestamp()
	if config.Service != "" {
		l = l.Str("service", config.Service)
	}
	return &zeroLogger{log: l.Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zeroLogger{log: zerolog.Nop()}
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) With(component string) Logger {
	return &zeroLogger{log: l.log.With().Str("component", component).Logger()}
}
