// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "strings"

// primitiveSourceNames maps a descriptor's primitive component letter to
// its source-language spelling, used both directions by normalizeTypeName.
var primitiveSourceNames = map[byte]string{
	'V': "void", 'Z': "boolean", 'B': "byte", 'S': "short",
	'C': "char", 'I': "int", 'J': "long", 'F': "float", 'D': "double",
}

// componentDescriptor strips descriptor-form leading array markers from
// descriptor, returning the component descriptor and the array rank.
func componentDescriptor(descriptor string) (string, int) {
	rank := 0
	for rank < len(descriptor) && descriptor[rank] == '[' {
		rank++
	}
	return descriptor[rank:], rank
}

// normalizeTypeName accepts either descriptor form (`Lpkg/Cls;`, `[I`)
// or source-name form (`pkg.Cls`, `int[]`) and returns the component
// type's descriptor-form name plus its array rank.
func normalizeTypeName(name string) (componentDesc string, rank int) {
	if strings.HasSuffix(name, "[]") {
		rank = 0
		for strings.HasSuffix(name, "[]") {
			name = name[:len(name)-2]
			rank++
		}
		return sourceToDescriptor(name), rank
	}
	if strings.HasPrefix(name, "[") || strings.HasPrefix(name, "L") ||
		(len(name) == 1 && isPrimitiveDescriptorLetter(name[0])) {
		comp, rank := componentDescriptor(name)
		return comp, rank
	}
	return sourceToDescriptor(name), 0
}

func isPrimitiveDescriptorLetter(c byte) bool {
	_, ok := primitiveSourceNames[c]
	return ok
}

func sourceToDescriptor(name string) string {
	for letter, source := range primitiveSourceNames {
		if name == source {
			return string(letter)
		}
	}
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

// isTypeNameMatched evaluates a String matcher against a type
// descriptor that itself carries an array rank: the component
// descriptor (sans `[` prefix) is matched as a literal string, while
// the array rank is compared `==` for Equal/EndWith and `<=` for
// StartWith/Contains (a prefix or substring match still holds for any
// deeper array nesting of the same component type).
func isTypeNameMatched(m *StringMatcher, actualDescriptor string) bool {
	if m == nil {
		return true
	}
	wantComp, wantRank := normalizeTypeName(m.Value)
	actualComp, actualRank := componentDescriptor(actualDescriptor)

	typ := m.MatchType
	if typ == SimilarRegex {
		wantComp, typ = lowerSimilarRegex(wantComp)
	}

	switch typ {
	case Equal, EndWith:
		if actualRank != wantRank {
			return false
		}
	case StartWith, Contains:
		if actualRank < wantRank {
			return false
		}
	}

	sub := &StringMatcher{Value: wantComp, MatchType: typ, IgnoreCase: m.IgnoreCase}
	return isStringMatched(sub, actualComp)
}
