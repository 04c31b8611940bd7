// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saferwall/dxscan/engine"
	"github.com/saferwall/dxscan/matcher"
)

// newBatchFindCmd drives the batch using-strings queries: each
// repeated --match key=pattern flag groups its pattern under the union
// key named before the '=', and the engine compiles all keys into a
// single Aho-Corasick pass.
func newBatchFindCmd() *cobra.Command {
	var (
		target     string
		matches    []string
		contains   bool
		ignoreCase bool
	)
	cmd := &cobra.Command{
		Use:   "batch-find [images...]",
		Short: "Batch-find classes or methods by required using-string sets, one union key per --match group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseBatchKeys(matches, contains, ignoreCase)
			if err != nil {
				return err
			}
			e := loadImages(args)
			defer e.Close()

			switch target {
			case "class":
				out, err := e.BatchFindClassUsingStrings(keys)
				if err != nil {
					return err
				}
				printBatchResults(out, func(r engine.ClassResult) string { return r.Descriptor })
			case "method":
				out, err := e.BatchFindMethodUsingStrings(keys)
				if err != nil {
					return err
				}
				printBatchResults(out, func(r engine.MethodResult) string { return r.Name })
			default:
				return fmt.Errorf("batch-find: --target must be \"class\" or \"method\", got %q", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "class", "what to batch-find: class or method")
	cmd.Flags().StringArrayVar(&matches, "match", nil, "key=pattern, repeatable; all patterns sharing a key must all be present")
	cmd.Flags().BoolVar(&contains, "contains", true, "match patterns as substrings instead of exact equality")
	cmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "case-fold pattern matching")
	return cmd
}

func parseBatchKeys(matches []string, contains, ignoreCase bool) ([]engine.BatchKey, error) {
	order := make([]string, 0)
	byKey := make(map[string][]*matcher.StringMatcher)
	mt := matcher.Equal
	if contains {
		mt = matcher.Contains
	}
	for _, kv := range matches {
		key, pattern, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("batch-find: --match %q must be of the form key=pattern", kv)
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], &matcher.StringMatcher{Value: pattern, MatchType: mt, IgnoreCase: ignoreCase})
	}
	keys := make([]engine.BatchKey, len(order))
	for i, k := range order {
		keys[i] = engine.BatchKey{Key: k, Patterns: byKey[k]}
	}
	return keys, nil
}

func printBatchResults[T any](out map[string][]T, label func(T) string) {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(colorize(colorDim, "["+k+"]"))
		for _, r := range out[k] {
			fmt.Printf("  %s\n", colorize(colorMatch, label(r)))
		}
	}
	fmt.Println(colorize(colorCount, fmt.Sprintf("%d key(s) matched", len(keys))))
}
