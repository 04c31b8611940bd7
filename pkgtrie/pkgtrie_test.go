// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pkgtrie

import (
	"testing"
)

func TestAccept(t *testing.T) {

	trie := New([]string{"Lcom/x/"}, []string{"Lcom/x/gen/"}, false)

	tests := []struct {
		descriptor string
		out        bool
	}{
		{"Lcom/x/a/C;", true},
		{"Lcom/x/gen/D;", false},
		{"Lcom/y/E;", false},
		{"Lcom/x/", true},
		{"Lcom/x/gen/deeper/F;", false},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			if got := trie.Accept(tt.descriptor); got != tt.out {
				t.Errorf("Accept(%q) got %v, want %v", tt.descriptor, got, tt.out)
			}
		})
	}
}

func TestAcceptNoIncludes(t *testing.T) {
	// With no include list, inclusion defaults to "all"; only excludes
	// prune.
	trie := New(nil, []string{"Landroidx/"}, false)

	tests := []struct {
		descriptor string
		out        bool
	}{
		{"Lcom/x/a/C;", true},
		{"Landroidx/core/app/A;", false},
	}

	for _, tt := range tests {
		if got := trie.Accept(tt.descriptor); got != tt.out {
			t.Errorf("Accept(%q) got %v, want %v", tt.descriptor, got, tt.out)
		}
	}
}

func TestAcceptIgnoreCase(t *testing.T) {
	trie := New([]string{"Lcom/X/"}, nil, true)
	if !trie.Accept("Lcom/x/C;") {
		t.Errorf("Accept(Lcom/x/C;) with ignoreCase got false, want true")
	}
	caseSensitive := New([]string{"Lcom/X/"}, nil, false)
	if caseSensitive.Accept("Lcom/x/C;") {
		t.Errorf("Accept(Lcom/x/C;) without ignoreCase got true, want false")
	}
}

func TestWalkMask(t *testing.T) {
	trie := New([]string{"La/"}, []string{"La/b/"}, false)

	tests := []struct {
		descriptor string
		out        Mask
	}{
		{"La/C;", Include},
		{"La/b/C;", Include | Exclude},
		{"Lz/C;", 0},
	}

	for _, tt := range tests {
		if got := trie.Walk(tt.descriptor); got != tt.out {
			t.Errorf("Walk(%q) got %v, want %v", tt.descriptor, got, tt.out)
		}
	}
}
