// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/strmatch"

// lowerSimilarRegex reduces a restricted SimilarRegex (only a leading ^
// and/or trailing $ are anchors) to one of the four literal match
// kinds. Any other regex metacharacter is part of the literal — there
// is deliberately no richer regex support, and an unsupported pattern
// degrades to a Contains miss rather than panicking, the same "unknown
// lookups are a match miss, not an error" rule the evaluator follows
// everywhere.
func lowerSimilarRegex(value string) (string, MatchType) {
	hasPrefix := len(value) > 0 && value[0] == '^'
	hasSuffix := len(value) > 0 && value[len(value)-1] == '$'
	lit := value
	if hasPrefix {
		lit = lit[1:]
	}
	if hasSuffix && len(lit) > 0 {
		lit = lit[:len(lit)-1]
	}
	switch {
	case hasPrefix && hasSuffix:
		return lit, Equal
	case hasPrefix:
		return lit, StartWith
	case hasSuffix:
		return lit, EndWith
	default:
		return lit, Contains
	}
}

// LowerSimilarRegex exposes the SimilarRegex lowering to the query
// driver, which compiles batch keyword sets outside this package.
func LowerSimilarRegex(value string) (string, MatchType) {
	return lowerSimilarRegex(value)
}

// isStringMatched evaluates a primitive String matcher against candidate.
func isStringMatched(m *StringMatcher, candidate string) bool {
	if m == nil {
		return true
	}
	value, typ := m.Value, m.MatchType
	if typ == SimilarRegex {
		value, typ = lowerSimilarRegex(value)
	}

	var smt strmatch.Type
	switch typ {
	case Equal:
		smt = strmatch.Equal
	case StartWith:
		smt = strmatch.StartWith
	case EndWith:
		smt = strmatch.EndWith
	case Contains:
		smt = strmatch.Contains
	default:
		return false
	}
	return strmatch.New(value, m.IgnoreCase).Match(candidate, smt)
}

// isAccessFlagsMatched evaluates a primitive access-flags matcher.
func isAccessFlagsMatched(m *AccessFlagsMatcher, actual uint32) bool {
	if m == nil {
		return true
	}
	switch m.MatchType {
	case FlagsEqual:
		return actual == m.Flags
	case FlagsContains:
		return actual&m.Flags == m.Flags
	default:
		return false
	}
}

// isIntRangeMatched evaluates an inclusive int-range matcher.
func isIntRangeMatched(r *IntRange, v int64) bool {
	if r == nil {
		return true
	}
	return v >= r.Min && v <= r.Max
}
