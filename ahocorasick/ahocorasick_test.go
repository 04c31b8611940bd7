// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ahocorasick

import (
	"reflect"
	"testing"
)

func patterns(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestScan(t *testing.T) {

	tests := []struct {
		name     string
		patterns []string
		text     string
		out      []Hit
	}{
		{
			"single pattern single hit",
			[]string{"Emo"},
			"reSendEmo 123",
			[]Hit{{Pattern: 0, Begin: 6, End: 9}},
		},
		{
			"overlapping patterns report both",
			[]string{"he", "she", "hers"},
			"shers",
			[]Hit{
				{Pattern: 1, Begin: 0, End: 3},
				{Pattern: 0, Begin: 1, End: 3},
				{Pattern: 2, Begin: 1, End: 5},
			},
		},
		{
			"repeated hit reported per occurrence",
			[]string{"ab"},
			"abab",
			[]Hit{{Pattern: 0, Begin: 0, End: 2}, {Pattern: 0, Begin: 2, End: 4}},
		},
		{
			"no hit",
			[]string{"qimei="},
			"qimei",
			nil,
		},
		{
			"pattern equal to text",
			[]string{"qimei=abc"},
			"qimei=abc",
			[]Hit{{Pattern: 0, Begin: 0, End: 9}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trie := Build(patterns(tt.patterns...))
			got := trie.Scan([]byte(tt.text))
			if !reflect.DeepEqual(got, tt.out) {
				t.Errorf("Scan(%q) got %v, want %v", tt.text, got, tt.out)
			}
		})
	}
}

func TestScanManyTexts(t *testing.T) {
	trie := Build(patterns("reSendEmo", "qimei="))
	if n := trie.NumPatterns(); n != 2 {
		t.Fatalf("NumPatterns() got %d, want 2", n)
	}

	// One trie scanned over many method string sets, as the evaluator
	// does: results must be independent per text.
	texts := []string{"reSendEmo 123", "qimei=abc", "nothing here"}
	counts := []int{1, 1, 0}
	for i, text := range texts {
		if got := len(trie.Scan([]byte(text))); got != counts[i] {
			t.Errorf("Scan(%q) got %d hits, want %d", text, got, counts[i])
		}
	}
}
