// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package pkgtrie is a byte-level prefix trie over include/exclude
// package prefixes, returning a 2-bit hit mask for a class descriptor
// in O(len(descriptor)) regardless of how many prefixes are configured.
// The query driver compiles its find_package/search_packages/
// exclude_packages options into one and prunes classes before they ever
// reach the matcher evaluator.
package pkgtrie

// Mask bits set on a trie node that some configured prefix terminates at.
type Mask uint8

const (
	Include Mask = 1 << iota
	Exclude
)

type node struct {
	children map[byte]*node
	mask     Mask
}

func newNode() *node { return &node{children: make(map[byte]*node)} }

// Trie answers "is this descriptor included, and/or excluded" against a
// compiled set of prefixes.
type Trie struct {
	root       *node
	ignoreCase bool
	hasInclude bool
}

// New compiles includes and excludes (slash-form package prefixes, e.g.
// "Lcom/x/") into a single trie. When ignoreCase is true, prefixes and
// queried descriptors are ASCII case-folded before insertion/lookup.
func New(includes, excludes []string, ignoreCase bool) *Trie {
	t := &Trie{root: newNode(), ignoreCase: ignoreCase, hasInclude: len(includes) > 0}
	for _, p := range includes {
		t.insert(p, Include)
	}
	for _, p := range excludes {
		t.insert(p, Exclude)
	}
	return t
}

func (t *Trie) insert(prefix string, m Mask) {
	b := []byte(prefix)
	if t.ignoreCase {
		b = foldASCII(b)
	}
	n := t.root
	for _, c := range b {
		child, ok := n.children[c]
		if !ok {
			child = newNode()
			n.children[c] = child
		}
		n = child
	}
	n.mask |= m
}

// Walk returns the OR of every accept node's mask encountered while
// walking descriptor byte by byte — i.e. the union of include/exclude
// flags over every configured prefix that descriptor starts with.
func (t *Trie) Walk(descriptor string) Mask {
	b := []byte(descriptor)
	if t.ignoreCase {
		b = foldASCII(b)
	}
	var mask Mask
	n := t.root
	mask |= n.mask
	for _, c := range b {
		child, ok := n.children[c]
		if !ok {
			break
		}
		n = child
		mask |= n.mask
	}
	return mask
}

// Accept reports whether descriptor passes the configured include/exclude
// rule: the exclude bit always wins, and when any include prefix is
// configured, the include bit is additionally required.
func (t *Trie) Accept(descriptor string) bool {
	mask := t.Walk(descriptor)
	if mask&Exclude != 0 {
		return false
	}
	if t.hasInclude && mask&Include == 0 {
		return false
	}
	return true
}

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
