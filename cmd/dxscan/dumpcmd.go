// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/signing"
)

// allFlags is every derived-index category dump-cache forces, so the
// printed summary reflects a fully-built cache rather than the lazy
// minimum a query would have populated.
const allFlags = cache.FlagStrings | cache.FlagTypes | cache.FlagProtos |
	cache.FlagFields | cache.FlagMethods | cache.FlagOpcodeSeq |
	cache.FlagUsingString | cache.FlagUsingField | cache.FlagMethodInvoking |
	cache.FlagUsingNumber | cache.FlagClassAnnotation | cache.FlagFieldAnnotation |
	cache.FlagMethodAnnotation | cache.FlagParameterAnnotation

func newDumpCacheCmd() *cobra.Command {
	var crossRefs bool
	cmd := &cobra.Command{
		Use:   "dump-cache [images...]",
		Short: "Fully populate every derived index and print a per-image summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := loadImages(args)
			defer e.Close()

			bar := progressbar.NewOptions(len(args),
				progressbar.OptionSetDescription("building caches"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
			for _, c := range e.Images() {
				if err := c.InitCache(allFlags); err != nil {
					return err
				}
				bar.Add(1)
			}
			if crossRefs {
				if err := e.BuildCrossRefs(); err != nil {
					return err
				}
			}

			for i, c := range e.Images() {
				fmt.Printf("%s image %d (%s)\n", colorize(colorMatch, "==="), c.ImageID, args[i])
				fmt.Printf("  strings: %d  types: %d  protos: %d  fields: %d  methods: %d  class-defs: %d\n",
					len(c.View.Strings), len(c.View.TypeIDs), len(c.View.ProtoIDs),
					len(c.View.FieldIDs), len(c.View.MethodIDs), len(c.View.ClassDefs))
				var withCode, withStrings int
				for _, seq := range c.MethodOpcodeSeq {
					if len(seq) > 0 {
						withCode++
					}
				}
				for _, ids := range c.MethodUsingStringIDs {
					if len(ids) > 0 {
						withStrings++
					}
				}
				fmt.Printf("  methods with code: %d  methods loading strings: %d\n", withCode, withStrings)
				if crossRefs {
					var callers int
					for _, refs := range c.MethodCallerIDs {
						callers += len(refs)
					}
					fmt.Printf("  cross-image caller edges: %d\n", callers)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&crossRefs, "cross-refs", false, "also build the cross-image caller/field-use tables")
	return cmd
}

func newInspectSigningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-signing [archives...]",
		Short: "Print v1 (JAR) signing-block signer information for each archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				infos, err := signing.ExtractFromArchive(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "dxscan: %s: %v\n", path, err)
					continue
				}
				fmt.Printf("%s %s\n", colorize(colorMatch, "==="), path)
				for _, info := range infos {
					fmt.Printf("  block:     %s\n", info.BlockFile)
					fmt.Printf("  subject:   %s\n", info.Subject)
					fmt.Printf("  issuer:    %s\n", info.Issuer)
					fmt.Printf("  serial:    %s\n", info.SerialNumber)
					fmt.Printf("  validity:  %s - %s\n",
						info.NotBefore.Format("2006-01-02"), info.NotAfter.Format("2006-01-02"))
					fmt.Printf("  sig-alg:   %s  key-alg: %s\n",
						info.SignatureAlgorithm, info.PublicKeyAlgorithm)
				}
			}
			return nil
		},
	}
}
