// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package memo is per-worker memoization of derived matcher-node state
// (a compiled Aho-Corasick trie, lowered string patterns, a pre-built
// judge cache, ...), keyed by the matcher-node's own pointer identity.
//
// Go has no first-class thread-local storage, so each workpool task is
// handed its own *Store (created once per task, reused across every
// item the task scans) and threads it explicitly through the evaluator.
// Derived state is recomputed once per task per query and amortized
// over the slice, without a global concurrent map or an unsafe
// goroutine-id lookup.
package memo

// Store is not safe for concurrent use — one Store belongs to exactly one
// workpool task for the duration of that task.
type Store struct {
	entries map[any]any
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[any]any)}
}

// Get returns the previously-stored derived state for node, if any. node
// should be the matcher-node pointer itself (e.g. *matcher.ClassMatcher)
// so identity, not structural equality, is what keys the cache.
func Get[T any](s *Store, node any) (T, bool) {
	var zero T
	v, ok := s.entries[node]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// GetOrCompute returns the memoized value for node, computing and storing
// it via compute on first touch.
func GetOrCompute[T any](s *Store, node any, compute func() T) T {
	if v, ok := Get[T](s, node); ok {
		return v
	}
	v := compute()
	s.entries[node] = v
	return v
}
