// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dxlog is a small leveled logger: a Logger interface, a
// stdlib-backed implementation, a level-filtering decorator, and a
// printf-style Helper. Library packages log through the interface and
// stay silent by default; only cmd wires a concrete sink.
package dxlog

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Level is a logging severity.
type Level int8

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
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every dxscan package logs through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes to a standard library *log.Logger.
type stdLogger struct {
	w *log.Logger
}

// NewStdLogger returns a Logger backed by the standard library, writing
// timestamped lines to w.
func NewStdLogger(w *os.File) Logger {
	return &stdLogger{w: log.New(w, "", 0)}
}

func (s *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	buf := fmt.Sprintf("%s level=%s", time.Now().Format(time.RFC3339), level)
	for i := 0; i < len(keyvals); i += 2 {
		buf += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	s.w.Println(buf)
	return nil
}

// FilterOption configures a filtering decorator built by NewFilter.
type FilterOption func(*filter)

// FilterLevel drops any Log call below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

type filter struct {
	next  Logger
	level Level
}

// NewFilter wraps next, dropping log lines below the configured level.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) Debugf(format string, a ...interface{}) {
	h.logger.Log(LevelDebug, "msg", fmt.Sprintf(format, a...))
}

func (h *Helper) Infof(format string, a ...interface{}) {
	h.logger.Log(LevelInfo, "msg", fmt.Sprintf(format, a...))
}

func (h *Helper) Warnf(format string, a ...interface{}) {
	h.logger.Log(LevelWarn, "msg", fmt.Sprintf(format, a...))
}

func (h *Helper) Errorf(format string, a ...interface{}) {
	h.logger.Log(LevelError, "msg", fmt.Sprintf(format, a...))
}
