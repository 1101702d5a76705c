// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package intern provides a reference intern pool: a concurrent,
// first-writer-wins table used to bound the memory thousands of catalog
// entries would otherwise spend on repeated strings, timestamps and
// versions (spec §3, Reference Intern Pool). Unlike internal/lru, values
// here are never evicted — an entry, once interned, must stay valid for
// as long as any CatalogEntry referencing it is alive.
package intern

import "sync"

// Table interns values of type T keyed by a comparable key K. The zero
// Table is ready to use.
type Table[K comparable, V any] struct {
	mu     sync.Mutex
	values map[K]V
}

// Intern returns the existing value for k if one was already inserted;
// otherwise it stores and returns newValue().
func (t *Table[K, V]) Intern(k K, newValue func() V) V {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.values == nil {
		t.values = map[K]V{}
	}
	if v, ok := t.values[k]; ok {
		return v
	}
	v := newValue()
	t.values[k] = v
	return v
}

// Len reports the number of distinct values currently interned.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// Pool is the reference intern pool shared by a single reader session: one
// table per kind of repeated value (spec §4.2). All methods are safe for
// concurrent use.
type Pool struct {
	strings    Table[string, string]
	timestamps Table[string, string] // keyed by the raw ISO-8601 text
	versions   Table[string, string] // keyed by the raw version wire text
}

// NewPool returns a new, empty Pool.
func NewPool() *Pool { return &Pool{} }

// TimestampCount reports the number of distinct raw timestamp strings
// currently interned, for tests that verify repeated values are
// deduplicated.
func (p *Pool) TimestampCount() int { return p.timestamps.Len() }

// VersionTextCount reports the number of distinct raw version strings
// currently interned, for tests that verify repeated values are
// deduplicated.
func (p *Pool) VersionTextCount() int { return p.versions.Len() }

// String interns s, returning a canonical shared copy.
func (p *Pool) String(s string) string {
	return p.strings.Intern(s, func() string { return s })
}

// Timestamp interns the raw ISO-8601 text of a commit timestamp, before
// it is parsed. Catalog pages and entries overwhelmingly repeat a
// handful of distinct commit timestamps (every entry written by the
// same publish batch shares one), so callers intern the wire text
// before calling time.Parse to avoid decoding thousands of duplicate
// string allocations concurrently across a page fetch.
func (p *Pool) Timestamp(raw string) string {
	return p.timestamps.Intern(raw, func() string { return raw })
}

// VersionText interns a version's wire text before it is parsed.
// version.Version retains its input string internally (backing the
// substrings of its parsed prerelease labels), so interning the wire
// text before version.Parse means every CatalogEntry sharing a common
// version string (e.g. "1.0.0") shares one backing array instead of
// each allocating its own copy that outlives the fetch.
func (p *Pool) VersionText(raw string) string {
	return p.versions.Intern(raw, func() string { return raw })
}
