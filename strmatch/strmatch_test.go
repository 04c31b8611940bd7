// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package strmatch

import (
	"testing"
)

func TestMatch(t *testing.T) {

	tests := []struct {
		pattern    string
		ignoreCase bool
		s          string
		typ        Type
		out        bool
	}{
		{"onCreate", false, "onCreate", Equal, true},
		{"onCreate", false, "onCreateView", Equal, false},
		{"oncreate", true, "onCreate", Equal, true},
		{"on", false, "onCreate", StartWith, true},
		{"Create", false, "onCreate", StartWith, false},
		{"Create", false, "onCreate", EndWith, true},
		{"on", false, "onCreate", EndWith, false},
		{"Crea", false, "onCreate", Contains, true},
		{"crea", false, "onCreate", Contains, false},
		{"crea", true, "onCreate", Contains, true},
		{"", false, "anything", Contains, true},
		{"", false, "", Equal, true},
		{"aab", false, "aaaab", Contains, true},
		{"aab", false, "aaba", StartWith, true},
		{"longer than subject", false, "short", StartWith, false},
		{"longer than subject", false, "short", EndWith, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.s, func(t *testing.T) {
			m := New(tt.pattern, tt.ignoreCase)
			got := m.Match(tt.s, tt.typ)
			if got != tt.out {
				t.Errorf("Match(%q, %v) got %v, want %v", tt.s, tt.typ, got, tt.out)
			}
		})
	}
}

func TestMatcherReuse(t *testing.T) {
	m := New("qimei=", false)
	candidates := []string{"qimei=abc", "xqimei=", "qimei", "prefix qimei= suffix"}
	want := []bool{true, true, false, true}
	for i, s := range candidates {
		if got := m.Match(s, Contains); got != want[i] {
			t.Errorf("Match(%q, Contains) got %v, want %v", s, got, want[i])
		}
	}
}

func TestEqualFold(t *testing.T) {

	tests := []struct {
		a, b       string
		ignoreCase bool
		out        bool
	}{
		{"Lcom/x/Y;", "Lcom/x/Y;", false, true},
		{"Lcom/x/Y;", "lcom/X/y;", false, false},
		{"Lcom/x/Y;", "lcom/X/y;", true, true},
		{"ü", "Ü", true, false}, // non-ASCII never folds
	}

	for _, tt := range tests {
		if got := EqualFold(tt.a, tt.b, tt.ignoreCase); got != tt.out {
			t.Errorf("EqualFold(%q, %q, %v) got %v, want %v", tt.a, tt.b, tt.ignoreCase, got, tt.out)
		}
	}
}
