// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build gofuzz

package dxscan

import "github.com/saferwall/dxscan/image"

// Fuzz is the go-fuzz entry point: feed arbitrary bytes through
// NewBytes+Parse and report 1 only for input the image layer accepts,
// so the fuzzer's corpus converges on well-formed headers instead of
// wasting mutations on instant rejects.
func Fuzz(data []byte) int {
	v, err := image.NewBytes(data)
	if err != nil {
		return 0
	}
	defer v.Close()
	return 1
}
