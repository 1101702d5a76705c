// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flatten collapses a catalog's publish/edit/delete event stream
// into the set of currently live packages (spec §4.7), and projects that
// set into a per-id sorted version listing (spec §4.8).
package flatten

import (
	"sort"

	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/uri"
	"github.com/nugetmirror/catalogmirror/internal/version"
)

// Flatten collapses entries — which must be in descending commit-time
// order — into the set of entries that are live as of the latest commit
// observed for each identity. A later (in catalog time, i.e. earlier in
// this descending walk) delete shadows any older add/update of the same
// identity; a later add/update wins over an older one.
//
// Because the walk is descending, the first occurrence of an identity
// settles its fate: if that first occurrence is a delete, the identity
// never enters the live set; otherwise it does, and any subsequent
// (older) occurrence of the same identity is ignored.
func Flatten(entries []catalog.CatalogEntry) []catalog.CatalogEntry {
	live := map[catalog.Identity]catalog.CatalogEntry{}
	deleted := map[catalog.Identity]bool{}

	for _, e := range entries {
		id := catalog.IdentityOf(e)
		if deleted[id] {
			continue
		}
		if _, ok := live[id]; ok {
			continue
		}
		switch e.Type {
		case catalog.EntryDelete:
			deleted[id] = true
		case catalog.EntryAddOrUpdate:
			live[id] = e
		}
	}

	out := make([]catalog.CatalogEntry, 0, len(live))
	for _, e := range live {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CommitTimeStamp.After(out[j].CommitTimeStamp)
	})
	return out
}

// PackageSet is the projection of a flattened entry list into
// id → sorted-ascending set of versions (spec §4.8).
type PackageSet struct {
	// ids preserves first-seen case for each lowercased id, so callers
	// display the id the way the repository published it.
	ids      map[string]string
	versions map[string][]version.Version
}

// NewPackageSet projects entries (already flattened; duplicate identities
// are not expected but are tolerated by keeping the first one seen) into
// a PackageSet.
func NewPackageSet(entries []catalog.CatalogEntry) *PackageSet {
	ps := &PackageSet{ids: map[string]string{}, versions: map[string][]version.Version{}}
	seen := map[catalog.Identity]bool{}
	for _, e := range entries {
		if !catalog.IsAddOrUpdate(e) {
			continue
		}
		id := catalog.IdentityOf(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		key := uri.Lower(e.ID)
		if _, ok := ps.ids[key]; !ok {
			ps.ids[key] = e.ID
		}
		ps.versions[key] = append(ps.versions[key], e.Version)
	}
	for key := range ps.versions {
		sort.Slice(ps.versions[key], func(i, j int) bool {
			return version.Compare(ps.versions[key][i], ps.versions[key][j]) < 0
		})
	}
	return ps
}

// IDs returns every package id in the set, in the original case it was
// first observed in, sorted case-insensitively.
func (ps *PackageSet) IDs() []string {
	keys := make([]string, 0, len(ps.ids))
	for k := range ps.ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = ps.ids[k]
	}
	return out
}

// Versions returns the ascending-sorted version list for id, or nil if id
// is not present (comparison is case-insensitive).
func (ps *PackageSet) Versions(id string) []version.Version {
	return ps.versions[uri.Lower(id)]
}

// Len reports the number of distinct package ids in the set.
func (ps *PackageSet) Len() int { return len(ps.ids) }
