// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package strmatch provides single-pattern substring, prefix, suffix,
// and equality tests with ASCII case folding. Contains runs a
// Knuth-Morris-Pratt scanner so a repeated substring query against many
// candidate strings never degrades to the naive quadratic scan;
// StartWith, EndWith and Equal compare the pattern directly against the
// candidate's ends.
package strmatch

// Type selects which substring relationship a Matcher tests for.
type Type uint8

const (
	Equal Type = iota
	StartWith
	EndWith
	Contains
)

// Matcher is a compiled single-pattern matcher: the KMP failure table is
// built once and reused across every candidate string it's run against.
type Matcher struct {
	pattern    []byte
	ignoreCase bool
	failure    []int
}

// New compiles pattern for repeated matching.
func New(pattern string, ignoreCase bool) *Matcher {
	p := []byte(pattern)
	if ignoreCase {
		p = foldASCII(p)
	}
	return &Matcher{pattern: p, ignoreCase: ignoreCase, failure: buildFailure(p)}
}

// Match reports whether s satisfies typ against the compiled pattern.
func (m *Matcher) Match(s string, typ Type) bool {
	b := []byte(s)
	if m.ignoreCase {
		b = foldASCII(b)
	}
	switch typ {
	case Equal:
		return string(b) == string(m.pattern)
	case StartWith:
		return len(b) >= len(m.pattern) && string(b[:len(m.pattern)]) == string(m.pattern)
	case EndWith:
		return len(b) >= len(m.pattern) && string(b[len(b)-len(m.pattern):]) == string(m.pattern)
	case Contains:
		if len(m.pattern) == 0 {
			return true
		}
		return m.indexKMP(b) >= 0
	default:
		return false
	}
}

// indexKMP finds the first occurrence of m.pattern in b.
func (m *Matcher) indexKMP(b []byte) int {
	if len(m.pattern) == 0 {
		return 0
	}
	j := 0
	for i := 0; i < len(b); i++ {
		for j > 0 && b[i] != m.pattern[j] {
			j = m.failure[j-1]
		}
		if b[i] == m.pattern[j] {
			j++
		}
		if j == len(m.pattern) {
			return i - j + 1
		}
	}
	return -1
}

func buildFailure(p []byte) []int {
	f := make([]int, len(p))
	k := 0
	for i := 1; i < len(p); i++ {
		for k > 0 && p[i] != p[k] {
			k = f[k-1]
		}
		if p[i] == p[k] {
			k++
		}
		f[i] = k
	}
	return f
}

// foldASCII lowercases the ASCII letters in b, leaving every other byte
// (including multi-byte UTF-8 sequences) untouched: case-insensitive
// comparison folds ASCII only.
func foldASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// EqualFold reports whether a and b are equal, optionally ASCII
// case-folded.
func EqualFold(a, b string, ignoreCase bool) bool {
	if !ignoreCase {
		return a == b
	}
	return string(foldASCII([]byte(a))) == string(foldASCII([]byte(b)))
}
