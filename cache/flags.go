// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

// Flags is the need-flags bitmask: a query's matcher analyzer computes
// the union of these it needs, and InitCache populates exactly the
// derived indices implied by that union, never re-reading indices
// already built.
type Flags uint32

const (
	FlagStrings Flags = 1 << iota
	FlagTypes
	FlagProtos
	FlagFields
	FlagMethods
	FlagAnnotations
	FlagOpcodeSeq
	FlagUsingString
	FlagUsingField
	FlagMethodInvoking
	FlagUsingNumber
	FlagClassAnnotation
	FlagFieldAnnotation
	FlagMethodAnnotation
	FlagParameterAnnotation
	FlagCallerMethod  // cross-image
	FlagRWFieldMethod // cross-image
)

// classDataFlags is the set of flags whose population requires the
// class-data walk (field/method id lists, access flags, code pointers).
const classDataFlags = FlagFields | FlagMethods | FlagOpcodeSeq | FlagUsingString |
	FlagUsingField | FlagMethodInvoking | FlagUsingNumber |
	FlagFieldAnnotation | FlagMethodAnnotation | FlagParameterAnnotation

// methodScanFlags is the set of flags whose population requires the
// per-method linear instruction sweep.
const methodScanFlags = FlagOpcodeSeq | FlagUsingString | FlagUsingField |
	FlagMethodInvoking | FlagUsingNumber

// Has reports whether f requests every bit set in want.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Any reports whether f requests any bit set in want.
func (f Flags) Any(want Flags) bool { return f&want != 0 }
