// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package bytecode names the opcode bytes and per-method instruction
// stream walk that cache.Cache's per-method derived scan runs over. It
// knows nothing about derived indices or matchers — it is the pure
// "what does this code unit stream consist of" layer, keeping the
// wire-format constants in one place apart from the structures that
// interpret them.
package bytecode

// Opcode is the single leading byte of an instruction, ignoring its
// register/operand payload. Values match the real Dalvik instruction set
// so that fixtures built against public bytecode references decode
// correctly.
type Opcode byte

const (
	Nop                Opcode = 0x00
	Move               Opcode = 0x01
	MoveResult         Opcode = 0x0a
	ReturnVoid         Opcode = 0x0e
	Const4             Opcode = 0x12
	Const16            Opcode = 0x13
	Const              Opcode = 0x14
	ConstHigh16        Opcode = 0x15
	ConstWide16        Opcode = 0x16
	ConstWide32        Opcode = 0x17
	ConstWide          Opcode = 0x18
	ConstWideHigh16    Opcode = 0x19
	ConstString        Opcode = 0x1a
	ConstStringJumbo   Opcode = 0x1b
	ConstClass         Opcode = 0x1c
	CheckCast          Opcode = 0x1f
	InstanceOf         Opcode = 0x20
	NewInstance        Opcode = 0x22
	NewArray           Opcode = 0x23
	FilledNewArray     Opcode = 0x24
	FilledNewArrayRng  Opcode = 0x25
	FillArrayData      Opcode = 0x26
	Throw              Opcode = 0x27
	PackedSwitch       Opcode = 0x2b
	SparseSwitch       Opcode = 0x2c
	IfEq               Opcode = 0x32
	IfLe               Opcode = 0x37
	IgetStart          Opcode = 0x52
	IgetShort          Opcode = 0x58
	IputStart          Opcode = 0x59
	IputShort          Opcode = 0x5f
	SgetStart          Opcode = 0x60
	SgetShort          Opcode = 0x66
	SputStart          Opcode = 0x67
	SputShort          Opcode = 0x6d
	InvokeVirtual      Opcode = 0x6e
	InvokeSuper        Opcode = 0x6f
	InvokeDirect       Opcode = 0x70
	InvokeStatic       Opcode = 0x71
	InvokeInterface    Opcode = 0x72
	InvokeVirtualRng   Opcode = 0x74
	InvokeSuperRng     Opcode = 0x75
	InvokeDirectRng    Opcode = 0x76
	InvokeStaticRng    Opcode = 0x77
	InvokeInterfaceRng Opcode = 0x78
	BinopLit16Start    Opcode = 0xd0
	BinopLit16End      Opcode = 0xd7
	BinopLit8Start     Opcode = 0xd8
	BinopLit8End       Opcode = 0xe2
)

// IsIget reports whether op is one of the iget/iget-wide/.../iget-short
// family (a field read).
func IsIget(op Opcode) bool { return op >= IgetStart && op <= IgetShort }

// IsIput reports whether op is one of the iput family (a field write).
func IsIput(op Opcode) bool { return op >= IputStart && op <= IputShort }

// IsSget reports whether op is one of the sget family (a static field read).
func IsSget(op Opcode) bool { return op >= SgetStart && op <= SgetShort }

// IsSput reports whether op is one of the sput family (a static field write).
func IsSput(op Opcode) bool { return op >= SputStart && op <= SputShort }

// IsFieldOp reports whether op touches a field at all.
func IsFieldOp(op Opcode) bool {
	return IsIget(op) || IsIput(op) || IsSget(op) || IsSput(op)
}

// IsFieldGet reports whether op is a read (iget*/sget*) as opposed to a
// write (iput*/sput*); only meaningful when IsFieldOp(op) is true.
func IsFieldGet(op Opcode) bool { return IsIget(op) || IsSget(op) }

// IsInvoke reports whether op is one of the invoke-* family.
func IsInvoke(op Opcode) bool {
	return (op >= InvokeVirtual && op <= InvokeInterface) ||
		(op >= InvokeVirtualRng && op <= InvokeInterfaceRng)
}

// IsInvokeRange reports whether op is one of the invoke-*/range forms,
// which encode their argument registers differently (3rc vs 35c).
func IsInvokeRange(op Opcode) bool { return op >= InvokeVirtualRng && op <= InvokeInterfaceRng }

// IsConstString reports whether op loads a string-table literal.
func IsConstString(op Opcode) bool { return op == ConstString || op == ConstStringJumbo }

// NumberKind identifies the literal type carried by a using-numbers
// entry, preserving the static type the opcode declares even though the
// underlying register is untyped.
type NumberKind uint8

const (
	KindByte NumberKind = iota
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
)

// IsNumberLiteral reports whether op carries a numeric literal operand,
// and if so its declared type.
func IsNumberLiteral(op Opcode) (NumberKind, bool) {
	switch op {
	case Const4, Const16, Const, ConstHigh16:
		return KindInt, true
	case ConstWide16, ConstWide32, ConstWide, ConstWideHigh16:
		return KindLong, true
	}
	switch {
	case op >= BinopLit16Start && op <= BinopLit16End:
		return KindShort, true
	case op >= BinopLit8Start && op <= BinopLit8End:
		return KindByte, true
	}
	return 0, false
}

// widthUnits gives the instruction width, in 16-bit code units, for every
// opcode byte that isn't a switch/array-data payload (those are detected
// and measured separately by Iterate, since they have no fixed width).
var widthUnits = buildWidthTable()

func buildWidthTable() [256]uint8 {
	var w [256]uint8
	for i := range w {
		w[i] = 1 // 10x/11x/11n/12x default
	}
	set := func(op Opcode, width uint8) { w[op] = width }
	setRange := func(lo, hi Opcode, width uint8) {
		for o := int(lo); o <= int(hi); o++ {
			w[o] = width
		}
	}

	set(Move, 1)
	set(0x02, 2) // move/from16
	set(0x03, 3) // move/16
	setRange(0x04, 0x04, 1)
	set(0x05, 2)
	set(0x06, 3)
	set(0x07, 1)
	set(0x08, 2)
	set(0x09, 3)
	setRange(0x0a, 0x11, 1) // move-result*, return*
	set(Const4, 1)
	set(Const16, 2)
	set(Const, 3)
	set(ConstHigh16, 2)
	set(ConstWide16, 2)
	set(ConstWide32, 3)
	set(ConstWide, 5)
	set(ConstWideHigh16, 2)
	set(ConstString, 2)
	set(ConstStringJumbo, 3)
	set(ConstClass, 2)
	setRange(0x1d, 0x1e, 1) // monitor-enter/exit
	set(CheckCast, 2)
	set(InstanceOf, 2)
	set(0x21, 1) // array-length
	set(NewInstance, 2)
	set(NewArray, 2)
	set(FilledNewArray, 3)
	set(FilledNewArrayRng, 3)
	set(FillArrayData, 3)
	set(Throw, 1)
	set(0x28, 1) // goto
	set(0x29, 2) // goto/16
	set(0x2a, 3) // goto/32
	set(PackedSwitch, 3)
	set(SparseSwitch, 3)
	setRange(0x2d, 0x31, 2) // cmp*
	setRange(0x32, IfLe, 2) // if-*
	setRange(0x38, 0x3d, 2) // if-*z
	setRange(0x3e, 0x43, 1) // unused
	setRange(0x44, 0x51, 2) // aget/aput family
	setRange(IgetStart, SputShort, 2) // iget..sput-short
	setRange(InvokeVirtual, InvokeInterface, 3)
	set(0x73, 1) // unused
	setRange(InvokeVirtualRng, InvokeInterfaceRng, 3)
	setRange(0x79, 0x7a, 1) // unused
	setRange(0x7b, 0x8f, 1) // unop
	setRange(0x90, 0xaf, 2) // binop
	setRange(0xb0, 0xcf, 1) // binop/2addr
	setRange(BinopLit16Start, BinopLit16End, 2)
	setRange(BinopLit8Start, BinopLit8End, 2)
	setRange(0xe3, 0xff, 1) // unused/odex
	return w
}

// WidthUnits returns the instruction width, in 16-bit code units, for a
// non-payload opcode.
func WidthUnits(op Opcode) uint8 { return widthUnits[op] }
