// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import (
	"testing"
)

func TestEvalUsingStrings(t *testing.T) {

	tests := []struct {
		name       string
		patterns   []*StringMatcher
		candidates []string
		out        bool
	}{
		{
			"all keywords present",
			[]*StringMatcher{
				{Value: "reSendEmo", MatchType: StartWith},
				{Value: "123", MatchType: Contains},
			},
			[]string{"reSendEmo 123"},
			true,
		},
		{
			"one keyword missing",
			[]*StringMatcher{
				{Value: "reSendEmo", MatchType: StartWith},
				{Value: "absent", MatchType: Contains},
			},
			[]string{"reSendEmo 123"},
			false,
		},
		{
			"equal requires full literal",
			[]*StringMatcher{{Value: "qimei=", MatchType: Equal}},
			[]string{"qimei=abc"},
			false,
		},
		{
			"startwith requires begin zero",
			[]*StringMatcher{{Value: "Emo", MatchType: StartWith}},
			[]string{"reSendEmo 123"},
			false,
		},
		{
			"endwith requires end at text length",
			[]*StringMatcher{{Value: "123", MatchType: EndWith}},
			[]string{"reSendEmo 123"},
			true,
		},
		{
			"empty keyword needs an empty candidate",
			[]*StringMatcher{{Value: "", MatchType: Equal}},
			[]string{"nonempty"},
			false,
		},
		{
			"empty keyword satisfied",
			[]*StringMatcher{{Value: "", MatchType: Equal}},
			[]string{"nonempty", ""},
			true,
		},
		{
			"case insensitive keyword",
			[]*StringMatcher{{Value: "RESENDEMO", MatchType: StartWith, IgnoreCase: true}},
			[]string{"reSendEmo 123"},
			true,
		},
		{
			"similar regex keyword",
			[]*StringMatcher{{Value: "^reSendEmo", MatchType: SimilarRegex}},
			[]string{"reSendEmo 123"},
			true,
		},
		{
			"no patterns always matches",
			nil,
			[]string{"anything"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := buildUsingStringsPlan(tt.patterns)
			if got := evalUsingStrings(plan, tt.candidates, nil); got != tt.out {
				t.Errorf("evalUsingStrings got %v, want %v", got, tt.out)
			}
		})
	}
}

func TestPlanMixedCaseSensitivity(t *testing.T) {
	// One matcher node can mix case-sensitive and case-insensitive
	// keywords: each must gate independently.
	patterns := []*StringMatcher{
		{Value: "exact", MatchType: Contains},
		{Value: "FOLDED", MatchType: Contains, IgnoreCase: true},
	}
	plan := buildUsingStringsPlan(patterns)

	if !evalUsingStrings(plan, []string{"has exact and folded"}, nil) {
		t.Error("mixed-case plan should match")
	}
	if evalUsingStrings(plan, []string{"has EXACT and folded"}, nil) {
		t.Error("case-sensitive keyword must not fold")
	}
}
