// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version implements the NuGet-flavored version scheme used by
// catalog entries (spec §3): a four-component numeric tuple (major,
// minor, patch, an optional fourth "revision" inherited from
// System.Version), an ordered list of prerelease labels, and build
// metadata that never affects ordering.
//
// golang.org/x/mod/semver only understands exactly three numeric
// components, so it cannot parse this format directly (see DESIGN.md).
// Compare orders the numeric components (revision included) itself; once
// those tie and both sides' prerelease labels form a valid SemVer 2.0
// prerelease, it delegates the label ordering to semver.Compare, which
// implements the same precedence rules this package otherwise applies by
// hand.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// Version is a parsed NuGet-style version.
type Version struct {
	Major, Minor, Patch, Revision int
	Release                       []string // dot-separated prerelease labels, case preserved; nil if none
	Metadata                      string   // build metadata after '+'; never affects ordering or equality of Normalized()
	raw                           string
}

// Parse parses s as a NuGet-style version:
//
//	major.minor.patch[.revision][-release.labels][+metadata]
func Parse(s string) (Version, error) {
	v := Version{raw: s}
	rest := s

	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v.Metadata = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		v.Release = strings.Split(rest[i+1:], ".")
		rest = rest[:i]
	}

	parts := strings.Split(rest, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return Version{}, fmt.Errorf("version.Parse(%q): expected 3 or 4 numeric components: %w", s, derrors.InvalidArgument)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version.Parse(%q): component %q is not a non-negative integer: %w", s, p, derrors.InvalidArgument)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch, v.Revision = nums[0], nums[1], nums[2], nums[3]
	return v, nil
}

// Normalized returns the canonical display form: the numeric core (the
// revision component is dropped when it is zero, matching NuGet's
// normalization rule), followed by the prerelease labels, with build
// metadata stripped. Case is preserved.
func (v Version) Normalized() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Revision != 0 {
		fmt.Fprintf(&b, ".%d", v.Revision)
	}
	if len(v.Release) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Release, "."))
	}
	return b.String()
}

// LowerNormalized is Normalized, lowercased — the form used in download
// paths and request URIs (spec §3, Normalization).
func (v Version) LowerNormalized() string {
	return strings.ToLower(v.Normalized())
}

// String returns the normalized form (without metadata). Use Normalized
// explicitly at call sites that care about the distinction; String exists
// so Version satisfies fmt.Stringer for logging.
func (v Version) String() string { return v.Normalized() }

// IsPrerelease reports whether v carries prerelease labels.
func (v Version) IsPrerelease() bool { return len(v.Release) > 0 }

// Equals reports whether v and o are the same version, including build
// metadata (testable property 7: "version equality across events
// preserves metadata"). Use Compare, not Equals, to order versions or to
// determine catalog-entry identity (which uses the metadata-stripped
// Normalized form instead, per spec §3).
func (v Version) Equals(o Version) bool {
	return v.Normalized() == o.Normalized() && v.Metadata == o.Metadata
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than o, ignoring build metadata (metadata never affects ordering).
func Compare(v, o Version) int {
	if c := compareInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, o.Patch); c != 0 {
		return c
	}
	if c := compareInt(v.Revision, o.Revision); c != 0 {
		return c
	}
	return compareRelease(v.Release, o.Release)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareRelease orders prerelease label lists: no labels (a release)
// outranks any prerelease; otherwise compare label-by-label, numeric
// identifiers compared numerically and everything else lexically, with a
// shorter, otherwise-equal list ranking lower — the same rules SemVer 2.0
// defines for prerelease precedence.
func compareRelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1 // a has no prerelease: a > b
	}
	if len(b) == 0 {
		return -1
	}
	// When both sides are canonical dotted SemVer prerelease identifiers,
	// defer to x/mod/semver, which already implements exactly this
	// precedence rule.
	if sa, ok := asSemverPrerelease(a); ok {
		if sb, ok := asSemverPrerelease(b); ok {
			return semver.Compare("v0.0.0-"+sa, "v0.0.0-"+sb)
		}
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func asSemverPrerelease(labels []string) (string, bool) {
	for _, l := range labels {
		if l == "" {
			return "", false
		}
	}
	s := strings.Join(labels, ".")
	return s, semver.IsValid("v0.0.0-" + s)
}

func compareIdentifier(a, b string) int {
	na, aerr := strconv.Atoi(a)
	nb, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return compareInt(na, nb)
	}
	if aerr == nil {
		return -1 // numeric identifiers have lower precedence than alphanumeric
	}
	if berr == nil {
		return 1
	}
	return strings.Compare(a, b)
}
