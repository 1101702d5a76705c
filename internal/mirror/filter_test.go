// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import "testing"

func TestFilterIncludeExclude(t *testing.T) {
	f, err := NewFilter([]string{"Newtonsoft.*"}, []string{"*.Beta"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	cases := []struct {
		id   string
		want bool
	}{
		{"Newtonsoft.Json", true},
		{"newtonsoft.json", true}, // case-insensitive
		{"Newtonsoft.Json.Beta", false},
		{"Other.Package", false},
	}
	for _, c := range cases {
		if got := f.Allows(c.id); got != c.want {
			t.Errorf("Allows(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestFilterNoInclude(t *testing.T) {
	f, err := NewFilter(nil, []string{"Excluded"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Allows("AnythingElse") {
		t.Error("Allows(AnythingElse) = false, want true (no include list means allow all but excludes)")
	}
	if f.Allows("Excluded") {
		t.Error("Allows(Excluded) = true, want false")
	}
}

func TestFilterSingleCharGlob(t *testing.T) {
	f, err := NewFilter([]string{"Pkg.v?"}, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Allows("Pkg.v1") {
		t.Error("Allows(Pkg.v1) = false, want true")
	}
	if f.Allows("Pkg.v10") {
		t.Error("Allows(Pkg.v10) = true, want false (? matches exactly one char)")
	}
}
