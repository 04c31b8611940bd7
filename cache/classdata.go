// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

// walkClassData is the single-pass class data walk: for every class-def
// in the image, read its already-decoded ClassData once and fan the
// (already delta-resolved) field/method id lists out into
// ClassFieldIDs/ClassMethodIDs/FieldAccessFlags/MethodAccessFlags/
// MethodCode. When want also asks for a method-scan category, each
// method's code item is walked immediately afterward so the whole class
// populates before moving to the next one, rather than interleaving
// multiple full sweeps over the class-def list.
func (c *Cache) walkClassData(want Flags) error {
	needScan := want.Any(methodScanFlags)

	for _, cd := range c.View.ClassDefs {
		data := c.View.ClassDataAt(cd.ClassDataOffset)
		if data == nil {
			c.ClassFieldIDs[cd.ClassIdx] = nil
			c.ClassMethodIDs[cd.ClassIdx] = nil
			continue
		}

		var fieldIDs, methodIDs []uint32

		for _, ef := range data.StaticFields {
			fieldIDs = append(fieldIDs, ef.FieldIdx)
			c.FieldAccessFlags[ef.FieldIdx] = ef.AccessFlags
		}
		for _, ef := range data.InstanceFields {
			fieldIDs = append(fieldIDs, ef.FieldIdx)
			c.FieldAccessFlags[ef.FieldIdx] = ef.AccessFlags
		}
		for _, em := range data.DirectMethods {
			methodIDs = append(methodIDs, em.MethodIdx)
			c.MethodAccessFlags[em.MethodIdx] = em.AccessFlags
			code := c.View.CodeItemAt(em.CodeOffset)
			c.MethodCode[em.MethodIdx] = code
			if needScan {
				c.scanMethod(em.MethodIdx, code)
			}
		}
		for _, em := range data.VirtualMethods {
			methodIDs = append(methodIDs, em.MethodIdx)
			c.MethodAccessFlags[em.MethodIdx] = em.AccessFlags
			code := c.View.CodeItemAt(em.CodeOffset)
			c.MethodCode[em.MethodIdx] = code
			if needScan {
				c.scanMethod(em.MethodIdx, code)
			}
		}

		c.ClassFieldIDs[cd.ClassIdx] = fieldIDs
		c.ClassMethodIDs[cd.ClassIdx] = methodIDs
	}
	return nil
}
