// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uri computes the canonical request URIs for a package's
// archive, manifest, package-base-address index and registration
// documents (spec §4.4). Every function here is pure: given base URIs and
// an (id, version) pair, it returns a URI string and nothing else.
package uri

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// Lower lowercases s using a pinned (un-localized) case fold, matching the
// case-insensitive identity comparisons spec §3 requires for package ids.
func Lower(s string) string { return lower.String(s) }

// TrimBase trims a trailing "/" from a base URI, as §4.4 requires of all
// base URIs before they're used to build a path.
func TrimBase(base string) string { return strings.TrimRight(base, "/") }

// Builder computes URIs relative to a package base address and a
// registration base address, both already normalized with TrimBase.
type Builder struct {
	PackageBase      string
	RegistrationBase string
}

// NewBuilder returns a Builder with both bases trimmed.
func NewBuilder(packageBase, registrationBase string) Builder {
	return Builder{
		PackageBase:      TrimBase(packageBase),
		RegistrationBase: TrimBase(registrationBase),
	}
}

// lowerPair lowercases id and version for use in a path segment.
func lowerPair(id, version string) (string, string) {
	return Lower(id), Lower(version)
}

// Archive returns {packageBase}/{id}/{version}/{id}.{version}.nupkg.
func (b Builder) Archive(id, version string) string {
	i, v := lowerPair(id, version)
	return fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", b.PackageBase, i, v, i, v)
}

// Manifest returns {packageBase}/{id}/{version}/{id}.nuspec.
func (b Builder) Manifest(id, version string) string {
	i, v := lowerPair(id, version)
	return fmt.Sprintf("%s/%s/%s/%s.nuspec", b.PackageBase, i, v, i)
}

// PackageBaseIndex returns {packageBase}/{id}/index.json.
func (b Builder) PackageBaseIndex(id string) string {
	return fmt.Sprintf("%s/%s/index.json", b.PackageBase, Lower(id))
}

// RegistrationLeaf returns {registrationBase}/{id}/{version}.json.
func (b Builder) RegistrationLeaf(id, version string) string {
	i, v := lowerPair(id, version)
	return fmt.Sprintf("%s/%s/%s.json", b.RegistrationBase, i, v)
}

// RegistrationIndex returns {registrationBase}/{id}/index.json.
func (b Builder) RegistrationIndex(id string) string {
	return fmt.Sprintf("%s/%s/index.json", b.RegistrationBase, Lower(id))
}
