// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bytecode

// Instruction is one decoded instruction from a method's code unit
// stream: its code-unit offset, opcode, and the raw code units it spans
// (including the opcode's own leading unit).
type Instruction struct {
	PC     uint32
	Opcode Opcode
	Units  []uint16
}

const (
	pseudoPackedSwitch  = 0x0100
	pseudoSparseSwitch  = 0x0200
	pseudoFillArrayData = 0x0300
)

// Iterate walks insns exactly once, left to right, advancing by the
// opcode width table and calling fn for every real instruction. The
// packed-switch/sparse-switch/fill-array-data payload regions are
// skipped whole, variable-length tails included, without being
// reported. It stops and returns fn's error if fn returns non-nil.
func Iterate(insns []uint16, fn func(Instruction) error) error {
	pc := uint32(0)
	for pc < uint32(len(insns)) {
		unit0 := insns[pc]
		op := Opcode(unit0 & 0xff)

		if op == Nop && unit0 != 0 {
			length := payloadLength(insns, pc, unit0)
			pc += length
			continue
		}

		width := uint32(WidthUnits(op))
		if width == 0 {
			width = 1
		}
		end := pc + width
		if end > uint32(len(insns)) {
			end = uint32(len(insns))
		}
		inst := Instruction{PC: pc, Opcode: op, Units: insns[pc:end]}
		if err := fn(inst); err != nil {
			return err
		}
		pc = end
	}
	return nil
}

// payloadLength returns the number of 16-bit code units a switch/
// array-data payload occupies, including its ident unit, so Iterate can
// skip the whole thing as a single step.
func payloadLength(insns []uint16, pc uint32, ident uint16) uint32 {
	switch ident {
	case pseudoPackedSwitch:
		if int(pc)+1 >= len(insns) {
			return 1
		}
		size := uint32(insns[pc+1])
		return 4 + size*2
	case pseudoSparseSwitch:
		if int(pc)+1 >= len(insns) {
			return 1
		}
		size := uint32(insns[pc+1])
		return 2 + size*4
	case pseudoFillArrayData:
		if int(pc)+3 >= len(insns) {
			return 1
		}
		elemWidth := uint32(insns[pc+1])
		size := uint32(insns[pc+2]) | uint32(insns[pc+3])<<16
		dataUnits := (size*elemWidth + 1) / 2
		return 4 + dataUnits
	default:
		// A plain "nop" used as alignment padding never carries a
		// non-zero ident, so reaching here means malformed input;
		// advance by one unit rather than looping forever.
		return 1
	}
}
