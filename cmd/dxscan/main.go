// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command dxscan is the CLI front end over the engine package: it
// loads one or more bytecode container images, builds a matcher from
// flags, and runs the find and batch-find queries against them.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/saferwall/dxscan/engine"
	"github.com/saferwall/dxscan/internal/dxlog"
	"github.com/saferwall/dxscan/internal/metrics"
	"github.com/saferwall/dxscan/matcher"
)

var (
	verbose bool
	noColor bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dxscan",
		Short: "A bytecode container static-analysis query tool",
		Long:  "Loads bytecode container images and runs class/method/field queries against them",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&noColor, "no-color", "", false, "disable colorized output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dxscan version 0.1.0")
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newFindClassCmd())
	rootCmd.AddCommand(newFindMethodCmd())
	rootCmd.AddCommand(newFindFieldCmd())
	rootCmd.AddCommand(newBatchFindCmd())
	rootCmd.AddCommand(newDumpCacheCmd())
	rootCmd.AddCommand(newInspectSigningCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadImages builds an Engine with metrics enabled and adds every path
// argument as a loaded image, exiting the process on the first load
// failure (this is a one-shot CLI, not a long-lived server: a bad image
// path is a user error worth failing fast on).
func loadImages(paths []string) *engine.Engine {
	e := engine.New(metrics.NewCollectors(nil))
	level := dxlog.LevelError
	if verbose {
		level = dxlog.LevelDebug
	}
	e.SetLogger(dxlog.NewFilter(dxlog.NewStdLogger(os.Stderr), dxlog.FilterLevel(level)))
	for _, p := range paths {
		if _, err := e.AddImage(p); err != nil {
			fmt.Fprintf(os.Stderr, "dxscan: failed to load %s: %v\n", p, err)
			os.Exit(1)
		}
	}
	return e
}

// classNameMatcher builds a ClassMatcher from the shared --class/
// --contains/--ignore-case flag trio every find-* subcommand exposes for
// narrowing by declaring-class name.
func classNameMatcher(name string, contains, ignoreCase bool) *matcher.ClassMatcher {
	if name == "" {
		return nil
	}
	mt := matcher.Equal
	if contains {
		mt = matcher.Contains
	}
	return &matcher.ClassMatcher{
		ClassName: &matcher.StringMatcher{Value: name, MatchType: mt, IgnoreCase: ignoreCase},
	}
}

func colorize(c *color.Color, s string) string {
	if noColor {
		return s
	}
	return c.Sprint(s)
}

var (
	colorMatch = color.New(color.FgGreen, color.Bold)
	colorCount = color.New(color.FgYellow)
	colorDim   = color.New(color.Faint)
)
