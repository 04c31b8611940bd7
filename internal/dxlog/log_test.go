// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dxlog

import (
	"testing"
)

type recordingLogger struct {
	lines []Level
}

func (r *recordingLogger) Log(level Level, keyvals ...interface{}) error {
	r.lines = append(r.lines, level)
	return nil
}

func TestFilterLevel(t *testing.T) {
	rec := &recordingLogger{}
	logger := NewFilter(rec, FilterLevel(LevelWarn))

	logger.Log(LevelDebug, "msg", "dropped")
	logger.Log(LevelInfo, "msg", "dropped")
	logger.Log(LevelWarn, "msg", "kept")
	logger.Log(LevelError, "msg", "kept")

	if len(rec.lines) != 2 {
		t.Fatalf("lines got %d, want 2", len(rec.lines))
	}
	if rec.lines[0] != LevelWarn || rec.lines[1] != LevelError {
		t.Errorf("levels got %v, want [WARN ERROR]", rec.lines)
	}
}

func TestHelper(t *testing.T) {
	rec := &recordingLogger{}
	h := NewHelper(rec)

	h.Debugf("a %d", 1)
	h.Infof("b")
	h.Warnf("c")
	h.Errorf("d")

	want := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
	if len(rec.lines) != len(want) {
		t.Fatalf("lines got %d, want %d", len(rec.lines), len(want))
	}
	for i, lv := range want {
		if rec.lines[i] != lv {
			t.Errorf("line %d level got %v, want %v", i, rec.lines[i], lv)
		}
	}
}

func TestLevelString(t *testing.T) {

	tests := []struct {
		in  Level
		out string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.out {
			t.Errorf("Level(%d).String() got %q, want %q", tt.in, got, tt.out)
		}
	}
}
