// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/bytecode"

// opcodeSeqMatches tests seq against pattern under typ, where a
// wildcard OpCodeToken matches any opcode. Equal/StartWith/EndWith are
// direct positional comparisons; Contains is a substring search
// implemented in-line rather than via strmatch/ahocorasick, since those
// packages operate on bytes and don't understand wildcard tokens.
func opcodeSeqMatches(seq []bytecode.Opcode, pattern []OpCodeToken, typ MatchType) bool {
	switch typ {
	case Equal:
		return len(seq) == len(pattern) && opcodesEqualAt(seq, pattern, 0)
	case StartWith:
		return len(seq) >= len(pattern) && opcodesEqualAt(seq, pattern, 0)
	case EndWith:
		offset := len(seq) - len(pattern)
		return offset >= 0 && opcodesEqualAt(seq, pattern, offset)
	case Contains:
		for start := 0; start+len(pattern) <= len(seq); start++ {
			if opcodesEqualAt(seq, pattern, start) {
				return true
			}
		}
		return len(pattern) == 0
	default:
		return false
	}
}

func opcodesEqualAt(seq []bytecode.Opcode, pattern []OpCodeToken, offset int) bool {
	for i, tok := range pattern {
		if tok.Wildcard {
			continue
		}
		if byte(seq[offset+i]) != tok.Opcode {
			return false
		}
	}
	return true
}
