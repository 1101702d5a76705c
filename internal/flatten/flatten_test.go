// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatten

import (
	"testing"
	"time"

	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	if err != nil {
		t.Fatalf("version.Parse(%q): %v", s, err)
	}
	return v
}

func entry(t *testing.T, id, v string, typ catalog.EntryType, at string) catalog.CatalogEntry {
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		t.Fatal(err)
	}
	return catalog.CatalogEntry{ID: id, Version: mustVersion(t, v), Type: typ, CommitTimeStamp: ts}
}

func TestFlattenDeleteShadowsOlderAdd(t *testing.T) {
	// Descending commit-time order, as Flatten requires.
	entries := []catalog.CatalogEntry{
		entry(t, "A", "1.0.0", catalog.EntryDelete, "2020-01-03T00:00:00Z"),
		entry(t, "A", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-02T00:00:00Z"),
	}
	live := Flatten(entries)
	if len(live) != 0 {
		t.Errorf("Flatten() = %v, want empty (delete observed after the add)", live)
	}
}

func TestFlattenLatestAddWins(t *testing.T) {
	entries := []catalog.CatalogEntry{
		entry(t, "A", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-03T00:00:00Z"),
		entry(t, "A", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-02T00:00:00Z"),
	}
	live := Flatten(entries)
	if len(live) != 1 || !live[0].CommitTimeStamp.Equal(entries[0].CommitTimeStamp) {
		t.Errorf("Flatten() = %v, want the newer add/update", live)
	}
}

func TestFlattenUnrelatedPackagesSurvive(t *testing.T) {
	entries := []catalog.CatalogEntry{
		entry(t, "A", "1.0.0", catalog.EntryDelete, "2020-01-03T00:00:00Z"),
		entry(t, "B", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-02T00:00:00Z"),
	}
	live := Flatten(entries)
	if len(live) != 1 || live[0].ID != "B" {
		t.Errorf("Flatten() = %v, want only B live", live)
	}
}

func TestPackageSet(t *testing.T) {
	entries := []catalog.CatalogEntry{
		entry(t, "A", "2.0.0", catalog.EntryAddOrUpdate, "2020-01-02T00:00:00Z"),
		entry(t, "A", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-01T00:00:00Z"),
		entry(t, "b", "1.0.0", catalog.EntryAddOrUpdate, "2020-01-01T00:00:00Z"),
	}
	ps := NewPackageSet(entries)
	if ps.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ps.Len())
	}
	vs := ps.Versions("a")
	if len(vs) != 2 || vs[0].Normalized() != "1.0.0" || vs[1].Normalized() != "2.0.0" {
		t.Errorf("Versions(%q) = %v, want ascending [1.0.0, 2.0.0]", "a", vs)
	}
	ids := ps.IDs()
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [A, b]", ids)
	}
}
