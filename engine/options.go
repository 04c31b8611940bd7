// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import "github.com/saferwall/dxscan/pkgtrie"

// Options carries the per-query configuration recognized by every find
// operation: find-first, package include/exclude prefixes, id scoping,
// and the source-file filter.
type Options struct {
	FindFirst          bool
	FindPackage        string
	SearchPackages     []string
	ExcludePackages    []string
	IgnorePackagesCase bool
	InClasses          []uint64
	InMethods          []uint64
	InFields           []uint64
	SourceFile         string
}

func (o Options) packageTrie() *pkgtrie.Trie {
	if o.FindPackage == "" && len(o.SearchPackages) == 0 && len(o.ExcludePackages) == 0 {
		return nil
	}
	includes := o.SearchPackages
	if o.FindPackage != "" {
		includes = append(append([]string{}, includes...), o.FindPackage)
	}
	return pkgtrie.New(includes, o.ExcludePackages, o.IgnorePackagesCase)
}

func scopeSet(ids []uint64) map[uint64]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
