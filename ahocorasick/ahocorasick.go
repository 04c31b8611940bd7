// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package ahocorasick is a build-once Aho-Corasick multi-pattern
// automaton reporting every (pattern, begin, end) hit over a text in a
// single linear pass. The matcher evaluator's using-strings
// acceleration builds one per matcher node, so a query naming dozens of
// keyword literals still costs one pass per method, not one pass per
// keyword.
package ahocorasick

// Hit is one match of a configured pattern against the scanned text:
// Begin and End are byte offsets into the text, End exclusive.
type Hit struct {
	Pattern int // index into the patterns slice passed to Build
	Begin   int
	End     int
}

type node struct {
	children map[byte]int // byte -> node index
	fail     int
	output   []int // pattern indices terminating at this node
}

// Trie is a compiled automaton over a fixed pattern set.
type Trie struct {
	nodes    []node
	patterns [][]byte
}

// Build compiles patterns (already case-folded by the caller if the query
// requested case-insensitive matching — Aho-Corasick itself is case
// sensitive) into an automaton ready for repeated Scan calls.
func Build(patterns [][]byte) *Trie {
	t := &Trie{nodes: []node{{children: make(map[byte]int)}}, patterns: patterns}
	for i, p := range patterns {
		t.insert(p, i)
	}
	t.buildFailureLinks()
	return t
}

func (t *Trie) insert(pattern []byte, idx int) {
	cur := 0
	for _, c := range pattern {
		next, ok := t.nodes[cur].children[c]
		if !ok {
			t.nodes = append(t.nodes, node{children: make(map[byte]int)})
			next = len(t.nodes) - 1
			t.nodes[cur].children[c] = next
		}
		cur = next
	}
	t.nodes[cur].output = append(t.nodes[cur].output, idx)
}

func (t *Trie) buildFailureLinks() {
	queue := make([]int, 0, len(t.nodes))
	for _, child := range t.nodes[0].children {
		t.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for c, child := range t.nodes[cur].children {
			fail := t.nodes[cur].fail
			for {
				if next, ok := t.nodes[fail].children[c]; ok && next != child {
					t.nodes[child].fail = next
					break
				}
				if fail == 0 {
					t.nodes[child].fail = 0
					break
				}
				fail = t.nodes[fail].fail
			}
			t.nodes[child].output = append(t.nodes[child].output, t.nodes[t.nodes[child].fail].output...)
			queue = append(queue, child)
		}
	}
}

// Scan reports every pattern hit in text, in order of appearance.
func (t *Trie) Scan(text []byte) []Hit {
	var hits []Hit
	cur := 0
	for i, c := range text {
		for {
			if next, ok := t.nodes[cur].children[c]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = t.nodes[cur].fail
		}
		for _, p := range t.nodes[cur].output {
			begin := i + 1 - len(t.patterns[p])
			hits = append(hits, Hit{Pattern: p, Begin: begin, End: i + 1})
		}
	}
	return hits
}

// NumPatterns returns the number of patterns the trie was built from,
// duplicates included.
func (t *Trie) NumPatterns() int { return len(t.patterns) }
