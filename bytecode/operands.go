// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bytecode

// Number is a decoded numeric literal, tagged with the width/type the
// opcode that produced it declares.
type Number struct {
	Kind   NumberKind
	Int    int64
	Float  float32
	Double float64
}

// Idx16 returns the second code unit of a 21c/22c/21s/21h-shaped
// instruction — the string/type/field/method table index those formats
// share at a fixed position.
func (i Instruction) Idx16() uint32 {
	if len(i.Units) < 2 {
		return 0
	}
	return uint32(i.Units[1])
}

// Idx32 returns the 32-bit table index of a 31c-shaped instruction
// (const-string/jumbo): the low 16 bits in unit 1, the high 16 bits in
// unit 2.
func (i Instruction) Idx32() uint32 {
	if len(i.Units) < 3 {
		return 0
	}
	return uint32(i.Units[1]) | uint32(i.Units[2])<<16
}

// FieldOrInvokeIdx returns the field/method/type table index referenced
// by any of the 21c/22c/35c/3rc-shaped instructions this package
// recognizes (const-string/const-class/check-cast/new-instance/
// instance-of/new-array/iget*/iput*/sget*/sput*/invoke*), all of which
// carry it in the instruction's second code unit.
func (i Instruction) FieldOrInvokeIdx() uint32 { return i.Idx16() }

// Number decodes the numeric literal carried by a const/const-wide/
// binop-lit instruction. ok is false for any other opcode.
func (i Instruction) Number() (Number, bool) {
	u := i.Units
	switch i.Opcode {
	case Const4:
		if len(u) < 1 {
			return Number{}, false
		}
		nibble := int8(u[0] >> 8) // high nibble lives in the top 4 bits of byte1
		v := nibble >> 4
		return Number{Kind: KindInt, Int: int64(v)}, true

	case Const16:
		if len(u) < 2 {
			return Number{}, false
		}
		return Number{Kind: KindInt, Int: int64(int16(u[1]))}, true

	case Const:
		if len(u) < 3 {
			return Number{}, false
		}
		v := uint32(u[1]) | uint32(u[2])<<16
		return Number{Kind: KindInt, Int: int64(int32(v))}, true

	case ConstHigh16:
		if len(u) < 2 {
			return Number{}, false
		}
		return Number{Kind: KindInt, Int: int64(int32(uint32(u[1]) << 16))}, true

	case ConstWide16:
		if len(u) < 2 {
			return Number{}, false
		}
		return Number{Kind: KindLong, Int: int64(int16(u[1]))}, true

	case ConstWide32:
		if len(u) < 3 {
			return Number{}, false
		}
		v := uint32(u[1]) | uint32(u[2])<<16
		return Number{Kind: KindLong, Int: int64(int32(v))}, true

	case ConstWide:
		if len(u) < 5 {
			return Number{}, false
		}
		v := uint64(u[1]) | uint64(u[2])<<16 | uint64(u[3])<<32 | uint64(u[4])<<48
		return Number{Kind: KindLong, Int: int64(v)}, true

	case ConstWideHigh16:
		// Treated uniformly with the other wide constants.
		if len(u) < 2 {
			return Number{}, false
		}
		return Number{Kind: KindLong, Int: int64(int16(u[1])) << 48}, true
	}

	switch {
	case i.Opcode >= BinopLit16Start && i.Opcode <= BinopLit16End:
		if len(u) < 2 {
			return Number{}, false
		}
		return Number{Kind: KindShort, Int: int64(int16(u[1]))}, true

	case i.Opcode >= BinopLit8Start && i.Opcode <= BinopLit8End:
		if len(u) < 2 {
			return Number{}, false
		}
		lit := int8(u[1] >> 8)
		return Number{Kind: KindByte, Int: int64(lit)}, true
	}

	return Number{}, false
}
