// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name, case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "", "INFO":
		return LogLevelInfo, nil
	case "DEBUG":
		return LogLevelDebug, nil
	case "TRACE":
		return LogLevelTrace, nil
	default:
		return LogLevelInfo, fmt.Errorf("zyre: unknown log level %q", s)
	}
}

// zapLevel maps a LogLevel onto zap. zap has no trace level, TRACE logs
// at debug.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// NewLogger creates a production zap logger writing JSON to stderr at the
// given level.
func NewLogger(level LogLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.Sampling = nil
	if level >= LogLevelDebug {
		cfg.Development = true
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("zyre: could not build logger: %w", err)
	}
	return log.Named("zyre"), nil
}

// NewDevelopmentLogger creates a human-readable console logger, for
// interactive tools.
func NewDevelopmentLogger(level LogLevel) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("zyre: could not build logger: %w", err)
	}
	return log.Named("zyre"), nil
}
