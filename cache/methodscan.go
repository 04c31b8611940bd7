// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

import (
	"github.com/saferwall/dxscan/bytecode"
	"github.com/saferwall/dxscan/image"
)

// scanMethod is the per-method derived scan: one linear sweep of code's
// instruction stream via bytecode.Iterate, fanning each
// instruction into whichever of MethodOpcodeSeq/MethodUsingStringIDs/
// MethodInvokingIDs/MethodUsingFieldIDs/MethodUsingNumbers it contributes
// to. Always records the opcode sequence — matchers compiling an
// OpCodesMatcher need it even when no other method-level flag is set,
// since methodScanFlags always implies FlagOpcodeSeq.
func (c *Cache) scanMethod(methodID uint32, code *image.CodeItem) {
	var (
		seq     []bytecode.Opcode
		strIDs  []uint32
		invokes []uint32
		fields  []FieldUse
		numbers []bytecode.Number
	)

	// Iterate's only error path is a caller-supplied fn returning
	// non-nil; this walk never does, so the error is always nil.
	_ = bytecode.Iterate(code.Insns, func(inst bytecode.Instruction) error {
		seq = append(seq, inst.Opcode)

		switch {
		case bytecode.IsConstString(inst.Opcode):
			var idx uint32
			if inst.Opcode == bytecode.ConstStringJumbo {
				idx = inst.Idx32()
			} else {
				idx = inst.Idx16()
			}
			strIDs = append(strIDs, idx)

		case bytecode.IsInvoke(inst.Opcode):
			invokes = append(invokes, inst.FieldOrInvokeIdx())

		case bytecode.IsFieldOp(inst.Opcode):
			fields = append(fields, FieldUse{
				FieldID: inst.FieldOrInvokeIdx(),
				IsGet:   bytecode.IsFieldGet(inst.Opcode),
			})
		}

		if n, ok := inst.Number(); ok {
			numbers = append(numbers, n)
		}
		return nil
	})

	c.MethodOpcodeSeq[methodID] = seq
	c.MethodUsingStringIDs[methodID] = strIDs
	c.MethodInvokingIDs[methodID] = invokes
	c.MethodUsingFieldIDs[methodID] = fields
	c.MethodUsingNumbers[methodID] = numbers
}
