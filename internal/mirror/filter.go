// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// Filter is a compiled set of include/exclude id globs (spec §4.10 step
// 2): "*" and "?" are compiled to an anchored, case-insensitive regex. An
// id survives the filter if it matches no exclude pattern, and either no
// include patterns were given or it matches at least one.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter compiles include and exclude glob lists into a Filter.
func NewFilter(include, exclude []string) (_ *Filter, err error) {
	defer derrors.Wrap(&err, "mirror.NewFilter(%v, %v)", include, exclude)

	f := &Filter{}
	f.include, err = compileGlobs(include)
	if err != nil {
		return nil, err
	}
	f.exclude, err = compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func compileGlobs(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)^" + globToRegexp(p) + "$")
		if err != nil {
			return nil, fmt.Errorf("compiling glob %q: %v: %w", p, err, derrors.InvalidArgument)
		}
		out = append(out, re)
	}
	return out, nil
}

// globToRegexp translates a "*"/"?" glob into the body of a regexp,
// escaping every other regexp metacharacter literally.
func globToRegexp(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// Allows reports whether id survives f.
func (f *Filter) Allows(id string) bool {
	for _, re := range f.exclude {
		if re.MatchString(id) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}
