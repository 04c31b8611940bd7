// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package image

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// decodeMUTF8 converts a container string-table entry (modified UTF-8, as
// used by Dalvik-style string pools) into a standard Go string. Modified
// UTF-8 agrees with ordinary UTF-8 everywhere except two encodings: the NUL
// byte is represented as the two-byte sequence C0 80, and characters
// outside the Basic Multilingual Plane are represented as a surrogate pair
// CESU-8-encoded as two three-byte sequences rather than one four-byte
// UTF-8 sequence.
//
// The surrogate-pair half is decoded through
// golang.org/x/text/encoding/unicode's UTF-16 decoder rather than by
// hand-assembling code points.
func decodeMUTF8(b []byte) string {
	var out bytes.Buffer
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	for i := 0; i < len(b); {
		switch {
		case b[i] == 0xC0 && i+1 < len(b) && b[i+1] == 0x80:
			out.WriteByte(0)
			i += 2

		case isCESU8SurrogateLead(b, i) && isCESU8SurrogateLead(b, i+3):
			hi := decodeCESU8Surrogate(b, i)
			lo := decodeCESU8Surrogate(b, i+3)
			le := []byte{byte(hi), byte(hi >> 8), byte(lo), byte(lo >> 8)}
			if decoded, err := dec.Bytes(le); err == nil {
				out.Write(decoded)
			}
			i += 6

		default:
			n := utf8SeqLen(b[i])
			if i+n > len(b) {
				n = len(b) - i
			}
			out.Write(b[i : i+n])
			i += n
		}
	}
	return out.String()
}

func utf8SeqLen(lead byte) int {
	switch {
	case lead&0x80 == 0x00:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// isCESU8SurrogateLead reports whether the 3-byte sequence at b[i:i+3]
// encodes a UTF-16 surrogate code point (the 0xED lead byte is only used,
// in valid UTF-8, for code points in the surrogate range).
func isCESU8SurrogateLead(b []byte, i int) bool {
	return i+3 <= len(b) && b[i] == 0xED && b[i+1]&0xF0 >= 0xA0 && b[i+1]&0xF0 <= 0xB0
}

func decodeCESU8Surrogate(b []byte, i int) uint16 {
	return uint16(b[i]&0x0F)<<12 | uint16(b[i+1]&0x3F)<<6 | uint16(b[i+2]&0x3F)
}
