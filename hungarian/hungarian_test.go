// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package hungarian

import (
	"testing"
)

// fieldTypes models a class with fields {int, String, long} probed by
// type patterns.
var fieldTypes = []string{"I", "Ljava/lang/String;", "J"}

func typeJudge(patterns []string) Judge {
	return func(item, pattern int) bool {
		return fieldTypes[item] == patterns[pattern]
	}
}

func TestSatisfies(t *testing.T) {

	tests := []struct {
		name      string
		patterns  []string
		equalSize bool
		out       bool
	}{
		{"contains subset", []string{"I", "J"}, false, true},
		{"equal full set", []string{"I", "J", "Ljava/lang/String;"}, true, true},
		{"equal with missing pattern", []string{"I", "J"}, true, false},
		{"unsatisfiable pattern", []string{"I", "J", "Ljava/lang/String;", "F"}, false, false},
		{"duplicate pattern exhausts items", []string{"I", "I"}, false, false},
		{"empty pattern set", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Satisfies(len(fieldTypes), len(tt.patterns), typeJudge(tt.patterns), tt.equalSize, nil)
			if got != tt.out {
				t.Errorf("Satisfies(%v, equalSize=%v) got %v, want %v", tt.patterns, tt.equalSize, got, tt.out)
			}
		})
	}
}

func TestMatchAugmentingPath(t *testing.T) {
	// Pattern 0 matches items {0,1}, pattern 1 matches only item 0:
	// a greedy assignment of item 0 to pattern 0 must be reassigned via
	// an augmenting path for both to be satisfied.
	judge := func(item, pattern int) bool {
		if pattern == 0 {
			return item == 0 || item == 1
		}
		return item == 0
	}
	res := Match(2, 2, judge, nil)
	if res.Count != 2 {
		t.Fatalf("Match count got %d, want 2", res.Count)
	}
	if res.ItemOfPattern[0] != 1 || res.ItemOfPattern[1] != 0 {
		t.Errorf("ItemOfPattern got %v, want [1 0]", res.ItemOfPattern)
	}
}

func TestMatchMemoizesJudge(t *testing.T) {
	calls := make(map[[2]int]int)
	judge := func(item, pattern int) bool {
		calls[[2]int{item, pattern}]++
		return false
	}
	Match(3, 3, judge, nil)
	for pair, n := range calls {
		if n > 1 {
			t.Errorf("judge(%v) called %d times, want at most once", pair, n)
		}
	}
}

func TestMatchStepCounter(t *testing.T) {
	steps := 0
	Match(4, 2, func(item, pattern int) bool { return true }, &steps)
	if steps == 0 {
		t.Errorf("steps counter not incremented")
	}
}
