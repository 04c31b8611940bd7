// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package image

import (
	"math"

	"github.com/saferwall/dxscan/dxerr"
)

// Magic identifies a dxscan container image.
var Magic = [8]byte{'d', 'x', 's', 'c', 'a', 'n', '0', '1'}

const headerSize = 8 + 6*8 // magic + 6 (size,offset) pairs

// Parse decodes every raw table out of v.data.
func (v *View) Parse() error {
	if len(v.data) < headerSize {
		return dxerr.ErrMalformedArchive
	}
	for i, b := range Magic {
		if v.data[i] != b {
			return dxerr.ErrMalformedArchive
		}
	}

	stringsSize, stringsOff, _ := v.pair(8)
	typesSize, typesOff, _ := v.pair(16)
	protosSize, protosOff, _ := v.pair(24)
	fieldsSize, fieldsOff, _ := v.pair(32)
	methodsSize, methodsOff, _ := v.pair(40)
	classDefsSize, classDefsOff, _ := v.pair(48)

	if err := v.parseStrings(stringsSize, stringsOff); err != nil {
		return err
	}
	if err := v.parseTypeIDs(typesSize, typesOff); err != nil {
		return err
	}
	if err := v.parseProtoIDs(protosSize, protosOff); err != nil {
		return err
	}
	if err := v.parseFieldIDs(fieldsSize, fieldsOff); err != nil {
		return err
	}
	if err := v.parseMethodIDs(methodsSize, methodsOff); err != nil {
		return err
	}
	if err := v.parseClassDefs(classDefsSize, classDefsOff); err != nil {
		return err
	}

	v.classData = make(map[uint32]*ClassData)
	v.codeItems = make(map[uint32]*CodeItem)
	v.annoDirs = make(map[uint32]*AnnotationsDirectory)
	for _, cd := range v.ClassDefs {
		if cd.ClassDataOffset != 0 {
			data, err := v.parseClassData(cd.ClassDataOffset)
			if err != nil {
				return err
			}
			v.classData[cd.ClassDataOffset] = data
			for _, m := range append(append([]EncodedMethod{}, data.DirectMethods...), data.VirtualMethods...) {
				if m.CodeOffset != 0 {
					if _, ok := v.codeItems[m.CodeOffset]; !ok {
						ci, err := v.parseCodeItem(m.CodeOffset)
						if err != nil {
							return err
						}
						v.codeItems[m.CodeOffset] = ci
					}
				}
			}
		}
		if cd.AnnotationsOffset != 0 {
			if _, ok := v.annoDirs[cd.AnnotationsOffset]; !ok {
				dir, err := v.parseAnnotationsDirectory(cd.AnnotationsOffset)
				if err != nil {
					return err
				}
				v.annoDirs[cd.AnnotationsOffset] = dir
			}
		}
	}
	return nil
}

func (v *View) pair(offset uint32) (size, off uint32, err error) {
	size, err = v.Uint32At(offset)
	if err != nil {
		return
	}
	off, err = v.Uint32At(offset + 4)
	return
}

func (v *View) parseStrings(size, off uint32) error {
	v.Strings = make([][]byte, size)
	for i := uint32(0); i < size; i++ {
		entryOff, err := v.Uint32At(off + i*4)
		if err != nil {
			return err
		}
		length, n, err := v.uleb128(entryOff)
		if err != nil {
			return err
		}
		b, err := v.BytesAt(entryOff+n, uint32(length))
		if err != nil {
			return err
		}
		v.Strings[i] = b
	}
	return nil
}

func (v *View) parseTypeIDs(size, off uint32) error {
	v.TypeIDs = make([]TypeID, size)
	for i := uint32(0); i < size; i++ {
		idx, err := v.Uint32At(off + i*4)
		if err != nil {
			return err
		}
		v.TypeIDs[i] = TypeID{DescriptorIdx: idx}
	}
	return nil
}

func (v *View) parseTypeList(off uint32) ([]uint32, error) {
	if off == 0 {
		return nil, nil
	}
	size, err := v.Uint32At(off)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, size)
	for i := uint32(0); i < size; i++ {
		out[i], err = v.Uint32At(off + 4 + i*4)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *View) parseProtoIDs(size, off uint32) error {
	v.ProtoIDs = make([]ProtoID, size)
	for i := uint32(0); i < size; i++ {
		base := off + i*12
		shorty, err := v.Uint32At(base)
		if err != nil {
			return err
		}
		ret, err := v.Uint32At(base + 4)
		if err != nil {
			return err
		}
		paramsOff, err := v.Uint32At(base + 8)
		if err != nil {
			return err
		}
		params, err := v.parseTypeList(paramsOff)
		if err != nil {
			return err
		}
		v.ProtoIDs[i] = ProtoID{ShortyIdx: shorty, ReturnTypeIdx: ret, ParameterTypes: params}
	}
	return nil
}

func (v *View) parseFieldIDs(size, off uint32) error {
	v.FieldIDs = make([]FieldID, size)
	for i := uint32(0); i < size; i++ {
		base := off + i*12
		classIdx, err := v.Uint32At(base)
		if err != nil {
			return err
		}
		typeIdx, err := v.Uint32At(base + 4)
		if err != nil {
			return err
		}
		nameIdx, err := v.Uint32At(base + 8)
		if err != nil {
			return err
		}
		v.FieldIDs[i] = FieldID{ClassIdx: classIdx, TypeIdx: typeIdx, NameIdx: nameIdx}
	}
	return nil
}

func (v *View) parseMethodIDs(size, off uint32) error {
	v.MethodIDs = make([]MethodID, size)
	for i := uint32(0); i < size; i++ {
		base := off + i*12
		classIdx, err := v.Uint32At(base)
		if err != nil {
			return err
		}
		protoIdx, err := v.Uint32At(base + 4)
		if err != nil {
			return err
		}
		nameIdx, err := v.Uint32At(base + 8)
		if err != nil {
			return err
		}
		v.MethodIDs[i] = MethodID{ClassIdx: classIdx, ProtoIdx: protoIdx, NameIdx: nameIdx}
	}
	return nil
}

func (v *View) parseClassDefs(size, off uint32) error {
	v.ClassDefs = make([]ClassDef, size)
	for i := uint32(0); i < size; i++ {
		base := off + i*32
		vals := make([]uint32, 8)
		for j := range vals {
			val, err := v.Uint32At(base + uint32(j)*4)
			if err != nil {
				return err
			}
			vals[j] = val
		}
		interfaces, err := v.parseTypeList(vals[3])
		if err != nil {
			return err
		}
		v.ClassDefs[i] = ClassDef{
			ClassIdx:          vals[0],
			AccessFlags:       vals[1],
			SuperclassIdx:     vals[2],
			Interfaces:        interfaces,
			SourceFileIdx:     vals[4],
			AnnotationsOffset: vals[5],
			ClassDataOffset:   vals[6],
			StaticValuesOff:   vals[7],
		}
	}
	return nil
}

func (v *View) parseEncodedFieldList(off uint32, n uint32) ([]EncodedField, uint32, error) {
	out := make([]EncodedField, n)
	var fieldIdx uint32
	cur := off
	for i := uint32(0); i < n; i++ {
		diff, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		flags, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		fieldIdx += uint32(diff)
		out[i] = EncodedField{FieldIdx: fieldIdx, AccessFlags: uint32(flags)}
	}
	return out, cur - off, nil
}

func (v *View) parseEncodedMethodList(off uint32, n uint32) ([]EncodedMethod, uint32, error) {
	out := make([]EncodedMethod, n)
	var methodIdx uint32
	cur := off
	for i := uint32(0); i < n; i++ {
		diff, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		flags, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		codeOff, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		methodIdx += uint32(diff)
		out[i] = EncodedMethod{MethodIdx: methodIdx, AccessFlags: uint32(flags), CodeOffset: uint32(codeOff)}
	}
	return out, cur - off, nil
}

func (v *View) parseClassData(off uint32) (*ClassData, error) {
	cur := off
	staticN, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, err
	}
	cur += nb
	instanceN, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, err
	}
	cur += nb
	directN, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, err
	}
	cur += nb
	virtualN, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, err
	}
	cur += nb

	staticFields, consumed, err := v.parseEncodedFieldList(cur, uint32(staticN))
	if err != nil {
		return nil, err
	}
	cur += consumed
	instanceFields, consumed, err := v.parseEncodedFieldList(cur, uint32(instanceN))
	if err != nil {
		return nil, err
	}
	cur += consumed
	directMethods, consumed, err := v.parseEncodedMethodList(cur, uint32(directN))
	if err != nil {
		return nil, err
	}
	cur += consumed
	virtualMethods, _, err := v.parseEncodedMethodList(cur, uint32(virtualN))
	if err != nil {
		return nil, err
	}

	return &ClassData{
		StaticFields:   staticFields,
		InstanceFields: instanceFields,
		DirectMethods:  directMethods,
		VirtualMethods: virtualMethods,
	}, nil
}

func (v *View) parseCodeItem(off uint32) (*CodeItem, error) {
	regs, err := v.Uint16At(off)
	if err != nil {
		return nil, err
	}
	ins, err := v.Uint16At(off + 2)
	if err != nil {
		return nil, err
	}
	outs, err := v.Uint16At(off + 4)
	if err != nil {
		return nil, err
	}
	tries, err := v.Uint16At(off + 6)
	if err != nil {
		return nil, err
	}
	debugOff, err := v.Uint32At(off + 8)
	if err != nil {
		return nil, err
	}
	insnsSize, err := v.Uint32At(off + 12)
	if err != nil {
		return nil, err
	}
	insns := make([]uint16, insnsSize)
	for i := uint32(0); i < insnsSize; i++ {
		u, err := v.Uint16At(off + 16 + i*2)
		if err != nil {
			return nil, err
		}
		insns[i] = u
	}
	return &CodeItem{
		RegistersSize: regs,
		InsSize:       ins,
		OutsSize:      outs,
		TriesSize:     tries,
		DebugInfoOff:  debugOff,
		Insns:         insns,
	}, nil
}

func (v *View) parseAnnotationSet(off uint32) (*AnnotationSet, error) {
	if off == 0 {
		return nil, nil
	}
	size, err := v.Uint32At(off)
	if err != nil {
		return nil, err
	}
	set := &AnnotationSet{Items: make([]AnnotationItem, 0, size)}
	for i := uint32(0); i < size; i++ {
		itemOff, err := v.Uint32At(off + 4 + i*4)
		if err != nil {
			return nil, err
		}
		item, err := v.parseAnnotationItem(itemOff)
		if err != nil {
			return nil, err
		}
		set.Items = append(set.Items, *item)
	}
	return set, nil
}

func (v *View) parseAnnotationItem(off uint32) (*AnnotationItem, error) {
	vis, err := v.Uint8At(off)
	if err != nil {
		return nil, err
	}
	anno, _, err := v.parseEncodedAnnotation(off + 1)
	if err != nil {
		return nil, err
	}
	return &AnnotationItem{Visibility: Visibility(vis), Annotation: *anno}, nil
}

func (v *View) parseEncodedAnnotation(off uint32) (*Annotation, uint32, error) {
	cur := off
	typeIdx, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, 0, err
	}
	cur += nb
	size, nb, err := v.uleb128(cur)
	if err != nil {
		return nil, 0, err
	}
	cur += nb

	elems := make([]AnnotationElement, size)
	for i := uint64(0); i < size; i++ {
		nameIdx, nb, err := v.uleb128(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		val, nb, err := v.parseEncodedValue(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		elems[i] = AnnotationElement{NameIdx: uint32(nameIdx), Value: *val}
	}
	return &Annotation{TypeIdx: uint32(typeIdx), Elements: elems}, cur - off, nil
}

func (v *View) parseEncodedValue(off uint32) (*EncodedValue, uint32, error) {
	tag, err := v.Uint8At(off)
	if err != nil {
		return nil, 0, err
	}
	cur := off + 1

	readU := func() (uint64, error) {
		val, nb, err := v.uleb128(cur)
		cur += nb
		return val, err
	}

	ev := &EncodedValue{Tag: EncodedValueTag(tag)}
	switch EncodedValueTag(tag) {
	case ValueByte:
		b, err := v.Uint8At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Int = int64(int8(b))
		cur++
	case ValueShort:
		u, err := v.Uint16At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Int = int64(int16(u))
		cur += 2
	case ValueChar:
		u, err := v.Uint16At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Int = int64(u)
		cur += 2
	case ValueInt:
		u, err := v.Uint32At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Int = int64(int32(u))
		cur += 4
	case ValueLong:
		u, err := v.Uint64At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Int = int64(u)
		cur += 8
	case ValueFloat:
		u, err := v.Uint32At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Float = math.Float32frombits(u)
		cur += 4
	case ValueDouble:
		u, err := v.Uint64At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Double = math.Float64frombits(u)
		cur += 8
	case ValueMethodType, ValueMethodHandle, ValueString, ValueType, ValueField, ValueMethod, ValueEnum:
		idx, err := readU()
		if err != nil {
			return nil, 0, err
		}
		ev.Str = uint32(idx)
		ev.Int = int64(idx)
	case ValueArray:
		size, err := readU()
		if err != nil {
			return nil, 0, err
		}
		ev.Array = make([]EncodedValue, size)
		for i := uint64(0); i < size; i++ {
			elem, nb, err := v.parseEncodedValue(cur)
			if err != nil {
				return nil, 0, err
			}
			cur += nb
			ev.Array[i] = *elem
		}
	case ValueAnnotation:
		anno, nb, err := v.parseEncodedAnnotation(cur)
		if err != nil {
			return nil, 0, err
		}
		cur += nb
		ev.Annotation = anno
	case ValueNull:
		// no payload
	case ValueBoolean:
		b, err := v.Uint8At(cur)
		if err != nil {
			return nil, 0, err
		}
		ev.Bool = b != 0
		cur++
	}
	return ev, cur - off, nil
}

func (v *View) parseAnnotationsDirectory(off uint32) (*AnnotationsDirectory, error) {
	classAnnosOff, err := v.Uint32At(off)
	if err != nil {
		return nil, err
	}
	fieldsSize, err := v.Uint32At(off + 4)
	if err != nil {
		return nil, err
	}
	methodsSize, err := v.Uint32At(off + 8)
	if err != nil {
		return nil, err
	}
	paramsSize, err := v.Uint32At(off + 12)
	if err != nil {
		return nil, err
	}

	dir := &AnnotationsDirectory{
		Fields:     make(map[uint32]*AnnotationSet, fieldsSize),
		Methods:    make(map[uint32]*AnnotationSet, methodsSize),
		Parameters: make(map[uint32][]*AnnotationSet, paramsSize),
	}

	classSet, err := v.parseAnnotationSet(classAnnosOff)
	if err != nil {
		return nil, err
	}
	dir.Class = classSet

	cur := off + 16
	for i := uint32(0); i < fieldsSize; i++ {
		fieldIdx, err := v.Uint32At(cur)
		if err != nil {
			return nil, err
		}
		setOff, err := v.Uint32At(cur + 4)
		if err != nil {
			return nil, err
		}
		cur += 8
		set, err := v.parseAnnotationSet(setOff)
		if err != nil {
			return nil, err
		}
		dir.Fields[fieldIdx] = set
	}
	for i := uint32(0); i < methodsSize; i++ {
		methodIdx, err := v.Uint32At(cur)
		if err != nil {
			return nil, err
		}
		setOff, err := v.Uint32At(cur + 4)
		if err != nil {
			return nil, err
		}
		cur += 8
		set, err := v.parseAnnotationSet(setOff)
		if err != nil {
			return nil, err
		}
		dir.Methods[methodIdx] = set
	}
	for i := uint32(0); i < paramsSize; i++ {
		methodIdx, err := v.Uint32At(cur)
		if err != nil {
			return nil, err
		}
		listOff, err := v.Uint32At(cur + 4)
		if err != nil {
			return nil, err
		}
		cur += 8
		size, err := v.Uint32At(listOff)
		if err != nil {
			return nil, err
		}
		sets := make([]*AnnotationSet, size)
		for j := uint32(0); j < size; j++ {
			setOff, err := v.Uint32At(listOff + 4 + j*4)
			if err != nil {
				return nil, err
			}
			set, err := v.parseAnnotationSet(setOff)
			if err != nil {
				return nil, err
			}
			sets[j] = set
		}
		dir.Parameters[methodIdx] = sets
	}
	return dir, nil
}

// uleb128 decodes an unsigned LEB128 value at offset, returning the value
// and the number of bytes consumed.
func (v *View) uleb128(offset uint32) (uint64, uint32, error) {
	var result uint64
	var shift uint
	var n uint32
	for {
		b, err := v.Uint8At(offset + n)
		if err != nil {
			return 0, 0, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, dxerr.ErrMalformedArchive
		}
	}
	return result, n, nil
}
