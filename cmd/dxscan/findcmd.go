// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saferwall/dxscan/engine"
	"github.com/saferwall/dxscan/matcher"
)

// commonFindFlags is the --find-first/--package/--search-package/
// --exclude-package/--ignore-packages-case quintet every find
// subcommand recognizes, bound once per subcommand.
type commonFindFlags struct {
	findFirst          bool
	findPackage        string
	searchPackages     []string
	excludePackages    []string
	ignorePackagesCase bool
}

func (f *commonFindFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.findFirst, "find-first", false, "stop after the first match")
	cmd.Flags().StringVar(&f.findPackage, "package", "", "restrict to classes under this package prefix")
	cmd.Flags().StringSliceVar(&f.searchPackages, "search-package", nil, "additional package prefixes to include")
	cmd.Flags().StringSliceVar(&f.excludePackages, "exclude-package", nil, "package prefixes to exclude")
	cmd.Flags().BoolVar(&f.ignorePackagesCase, "ignore-packages-case", false, "case-fold package prefix matching")
}

func (f *commonFindFlags) options() engine.Options {
	return engine.Options{
		FindFirst:          f.findFirst,
		FindPackage:        f.findPackage,
		SearchPackages:     f.searchPackages,
		ExcludePackages:    f.excludePackages,
		IgnorePackagesCase: f.ignorePackagesCase,
	}
}

func newFindClassCmd() *cobra.Command {
	var (
		className  string
		contains   bool
		ignoreCase bool
		flags      commonFindFlags
	)
	cmd := &cobra.Command{
		Use:   "find-class [images...]",
		Short: "Find classes matching a class-name pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := loadImages(args)
			defer e.Close()

			m := &matcher.ClassMatcher{ClassName: stringMatcherOrNil(className, contains, ignoreCase)}
			results, err := e.FindClass(m, flags.options())
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s  access=0x%x  source=%s  id=%016x\n",
					colorize(colorMatch, r.Descriptor), r.AccessFlags, r.SourceFile, r.ID)
			}
			fmt.Println(colorize(colorCount, fmt.Sprintf("%d class(es) matched", len(results))))
			return nil
		},
	}
	cmd.Flags().StringVar(&className, "class", "", "class name (descriptor or source form) to match")
	cmd.Flags().BoolVar(&contains, "contains", false, "match --class as a substring instead of exact equality")
	cmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "case-fold --class matching")
	flags.bind(cmd)
	return cmd
}

func newFindMethodCmd() *cobra.Command {
	var (
		methodName string
		className  string
		contains   bool
		ignoreCase bool
		flags      commonFindFlags
	)
	cmd := &cobra.Command{
		Use:   "find-method [images...]",
		Short: "Find methods matching a name and/or declaring-class pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := loadImages(args)
			defer e.Close()

			m := &matcher.MethodMatcher{
				Name:           stringMatcherOrNil(methodName, contains, ignoreCase),
				DeclaringClass: classNameMatcher(className, contains, ignoreCase),
			}
			results, err := e.FindMethod(m, flags.options())
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s  access=0x%x  id=%016x\n", colorize(colorMatch, r.Name), r.AccessFlags, r.ID)
			}
			fmt.Println(colorize(colorCount, fmt.Sprintf("%d method(s) matched", len(results))))
			return nil
		},
	}
	cmd.Flags().StringVar(&methodName, "method", "", "method name to match")
	cmd.Flags().StringVar(&className, "class", "", "declaring class name to match")
	cmd.Flags().BoolVar(&contains, "contains", false, "match names as a substring instead of exact equality")
	cmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "case-fold name matching")
	flags.bind(cmd)
	return cmd
}

func newFindFieldCmd() *cobra.Command {
	var (
		fieldName  string
		className  string
		contains   bool
		ignoreCase bool
		flags      commonFindFlags
	)
	cmd := &cobra.Command{
		Use:   "find-field [images...]",
		Short: "Find fields matching a name and/or declaring-class pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := loadImages(args)
			defer e.Close()

			m := &matcher.FieldMatcher{
				Name:           stringMatcherOrNil(fieldName, contains, ignoreCase),
				DeclaringClass: classNameMatcher(className, contains, ignoreCase),
			}
			results, err := e.FindField(m, flags.options())
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s  access=0x%x  id=%016x\n", colorize(colorMatch, r.Name), r.AccessFlags, r.ID)
			}
			fmt.Println(colorize(colorCount, fmt.Sprintf("%d field(s) matched", len(results))))
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldName, "field", "", "field name to match")
	cmd.Flags().StringVar(&className, "class", "", "declaring class name to match")
	cmd.Flags().BoolVar(&contains, "contains", false, "match names as a substring instead of exact equality")
	cmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "case-fold name matching")
	flags.bind(cmd)
	return cmd
}

func stringMatcherOrNil(value string, contains, ignoreCase bool) *matcher.StringMatcher {
	if value == "" {
		return nil
	}
	mt := matcher.Equal
	if contains {
		mt = matcher.Contains
	}
	return &matcher.StringMatcher{Value: value, MatchType: mt, IgnoreCase: ignoreCase}
}
