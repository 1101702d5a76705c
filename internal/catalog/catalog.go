// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog reads a repository's append-only catalog: the root
// document's page list (spec §4.5), and the entries within the selected
// pages, fetched with bounded concurrency (spec §4.6).
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/intern"
	"github.com/nugetmirror/catalogmirror/internal/serviceindex"
	"github.com/nugetmirror/catalogmirror/internal/uri"
	"github.com/nugetmirror/catalogmirror/internal/version"
)

// Session bundles the handles a reader session shares across every
// CatalogEntry it produces: the service index handle, the Fetch Fabric,
// the reference intern pool, and the URI builder derived from the
// service index. It is passed explicitly to every free function that
// needs one (IsListed, validator.Run, the mirror Driver's Session field)
// rather than
// stored on CatalogEntry itself — entries are plain data and outlive no
// particular fetch call.
type Session struct {
	ServiceIndex *serviceindex.Index
	Fetcher      *fetch.Client
	Pool         *intern.Pool
	Builder      uri.Builder
}

// EntryType distinguishes a catalog entry's publish/edit event from its
// delete event; both share the same identity (spec §3, Flatten rule).
type EntryType int

const (
	// EntryUnknown marks an entry whose @type didn't match a known form;
	// it's ignored by the flattener.
	EntryUnknown EntryType = iota
	EntryAddOrUpdate
	EntryDelete
)

const (
	typeAddOrUpdate = "nuget:PackageDetails"
	typeDelete      = "nuget:PackageDelete"
)

func parseEntryType(declared []string) EntryType {
	for _, t := range declared {
		switch t {
		case typeAddOrUpdate:
			return EntryAddOrUpdate
		case typeDelete:
			return EntryDelete
		}
	}
	return EntryUnknown
}

// CatalogPage is one entry of the catalog root document's "items" array.
type CatalogPage struct {
	URI             string
	CommitID        string
	CommitTimeStamp time.Time
	Types           []string
}

// CatalogEntry is a single publish/edit/delete event read from a page.
// Two entries are the same identity — for flattening and for the
// at-most-one-version-per-identity retention rule — iff their lowercased
// Id and Normalized Version agree (spec §3, Identity); CommitID and
// CommitTimeStamp are not part of identity.
type CatalogEntry struct {
	URI             string
	Types           []string
	Type            EntryType
	CommitID        string
	CommitTimeStamp time.Time
	ID              string // package id, original case preserved
	Version         version.Version
}

// IsAddOrUpdate reports whether e represents a publish/edit event rather
// than a delete or an unrecognized entry type.
func IsAddOrUpdate(e CatalogEntry) bool { return e.Type == EntryAddOrUpdate }

// registrationLeaf mirrors the wire format of
// {registrationBase}/{id}/{version}.json enough to read the listed flag.
type registrationLeaf struct {
	Listed bool `json:"listed"`
}

// IsListed answers the orthogonal "is this version listed?" query by
// fetching e's registration leaf document through sess and reading its
// listed flag. It is a free function, not a method backed by a stored
// reference, so CatalogEntry stays plain data usable after sess is gone
// (spec.md §9 Design Notes: deliberately not a pre-populated struct
// field either, to avoid an N+1 fetch for callers that only want an
// index).
func IsListed(ctx context.Context, e CatalogEntry, sess *Session) (_ bool, err error) {
	defer derrors.Wrap(&err, "catalog.IsListed(ctx, %s %s)", e.ID, e.Version)
	var leaf registrationLeaf
	u := sess.Builder.RegistrationLeaf(e.ID, e.Version.LowerNormalized())
	if err := sess.Fetcher.FetchJSON(ctx, u, &leaf); err != nil {
		return false, err
	}
	return leaf.Listed, nil
}

// Identity is the (lowercased id, normalized version) pair CatalogEntry
// equality and the package set projector group by.
type Identity struct {
	LowerID    string
	Normalized string
}

// IdentityOf returns e's identity key.
func IdentityOf(e CatalogEntry) Identity {
	return Identity{LowerID: uri.Lower(e.ID), Normalized: e.Version.LowerNormalized()}
}

// rawRoot and rawPage mirror the catalog root document's JSON wire format.
type rawRoot struct {
	Items []rawPage `json:"items"`
}

type rawPage struct {
	ID              string `json:"@id"`
	Type            any    `json:"@type"`
	CommitID        string `json:"commitId"`
	CommitTimeStamp string `json:"commitTimeStamp"`
}

// rawPageBody and rawEntry mirror a catalog page document's JSON wire
// format.
type rawPageBody struct {
	Items []rawEntry `json:"items"`
}

type rawEntry struct {
	ID              string `json:"@id"`
	Type            any    `json:"@type"`
	CommitID        string `json:"commitId"`
	CommitTimeStamp string `json:"commitTimeStamp"`
	PackageID       string `json:"nuget:id"`
	PackageVersion  string `json:"nuget:version"`
}

// typeStrings normalizes a JSON "@type" field, which NuGet catalogs
// sometimes encode as a single string and sometimes as an array, into a
// []string.
func typeStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Index reads the catalog root document and selects the page range for a
// traversal window.
type Index struct {
	sess *Session
}

// NewIndex returns an Index that fetches through sess.
func NewIndex(sess *Session) *Index {
	return &Index{sess: sess}
}

// Pages fetches the catalog root at catalogURI and returns every page it
// declares, in the order the document lists them. An empty or missing
// "items" array is not an error: it is an empty catalog.
func (ix *Index) Pages(ctx context.Context, catalogURI string) (_ []CatalogPage, err error) {
	defer derrors.Wrap(&err, "catalog.Index.Pages(ctx, %q)", catalogURI)

	var root rawRoot
	if err := ix.sess.Fetcher.FetchJSON(ctx, catalogURI, &root); err != nil {
		return nil, err
	}
	pages := make([]CatalogPage, 0, len(root.Items))
	for _, it := range root.Items {
		t, err := time.Parse(time.RFC3339, ix.sess.Pool.Timestamp(it.CommitTimeStamp))
		if err != nil {
			return nil, fmt.Errorf("parsing commitTimeStamp %q: %v: %w", it.CommitTimeStamp, err, derrors.ContentInvalid)
		}
		pages = append(pages, CatalogPage{
			URI:             ix.sess.Pool.String(it.ID),
			CommitID:        ix.sess.Pool.String(it.CommitID),
			CommitTimeStamp: t,
			Types:           typeStrings(it.Type),
		})
	}
	return pages, nil
}

// SelectRange implements the §4.5 page-range selection rule for the
// window (start, end]: every page whose commit timestamp falls in the
// window, plus — if one exists — the single next page beyond end, so
// that commits timestamped exactly at end but recorded on the following
// page are not missed. The result is sorted ascending by commit
// timestamp.
func SelectRange(pages []CatalogPage, start, end time.Time) []CatalogPage {
	var selected []CatalogPage
	var next *CatalogPage
	for i := range pages {
		p := pages[i]
		switch {
		case p.CommitTimeStamp.After(start) && !p.CommitTimeStamp.After(end):
			selected = append(selected, p)
		case p.CommitTimeStamp.After(end):
			if next == nil || p.CommitTimeStamp.Before(next.CommitTimeStamp) {
				pp := p
				next = &pp
			}
		}
	}
	if next != nil {
		selected = append(selected, *next)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].CommitTimeStamp.Before(selected[j].CommitTimeStamp)
	})
	return selected
}

// PageReader fetches catalog pages with a bounded number of in-flight
// requests and parses their entries (spec §4.6).
type PageReader struct {
	sess       *Session
	maxThreads int
}

// DefaultMaxThreads is the default bound on concurrent page fetches.
const DefaultMaxThreads = 16

// NewPageReader returns a PageReader. maxThreads is clamped to at least 1.
func NewPageReader(sess *Session, maxThreads int) *PageReader {
	if maxThreads < 1 {
		maxThreads = 1
	}
	return &PageReader{sess: sess, maxThreads: maxThreads}
}

// Entries fetches every page concurrently (bounded by maxThreads) and
// returns all entries whose commit timestamp falls in (start, end]. The
// result is unordered; callers sort by commit timestamp when order
// matters.
func (pr *PageReader) Entries(ctx context.Context, pages []CatalogPage, start, end time.Time) (_ []CatalogEntry, err error) {
	defer derrors.Wrap(&err, "catalog.PageReader.Entries(ctx, %d pages)", len(pages))

	var (
		g       errgroup.Group
		sem     = make(chan struct{}, pr.maxThreads)
		results = make([][]CatalogEntry, len(pages))
	)
	for i, page := range pages {
		i, page := i, page
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("%v: %w", ctx.Err(), derrors.Canceled)
		}
		g.Go(func() error {
			defer func() { <-sem }()
			entries, err := pr.fetchPage(ctx, page, start, end)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []CatalogEntry
	for _, r := range results {
		all = append(all, r...)
	}
	return dedupeByURI(all), nil
}

// dedupeByURI removes repeat entries carrying the same @id document URI,
// keeping the first occurrence. A catalog item's @id is the document
// that describes it, so two entries sharing one can only be the same
// event observed twice — which NuGet catalogs can produce when a commit
// timestamp tie lands an entry on both the page it belongs to and the
// single next page SelectRange includes to avoid missing an end-of-
// window tie (spec.md §4.6's de-duplication requirement).
func dedupeByURI(entries []CatalogEntry) []CatalogEntry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.URI] {
			continue
		}
		seen[e.URI] = true
		out = append(out, e)
	}
	return out
}

func (pr *PageReader) fetchPage(ctx context.Context, page CatalogPage, start, end time.Time) ([]CatalogEntry, error) {
	var body rawPageBody
	if err := pr.sess.Fetcher.FetchJSON(ctx, page.URI, &body); err != nil {
		return nil, err
	}
	var out []CatalogEntry
	for _, it := range body.Items {
		t, err := time.Parse(time.RFC3339, pr.sess.Pool.Timestamp(it.CommitTimeStamp))
		if err != nil {
			return nil, fmt.Errorf("parsing commitTimeStamp %q: %v: %w", it.CommitTimeStamp, err, derrors.ContentInvalid)
		}
		if !t.After(start) || t.After(end) {
			continue
		}
		v, err := version.Parse(pr.sess.Pool.VersionText(it.PackageVersion))
		if err != nil {
			return nil, fmt.Errorf("parsing version %q for %q: %v: %w", it.PackageVersion, it.PackageID, err, derrors.ContentInvalid)
		}
		out = append(out, CatalogEntry{
			URI:             pr.sess.Pool.String(it.ID),
			Types:           typeStrings(it.Type),
			Type:            parseEntryType(typeStrings(it.Type)),
			CommitID:        pr.sess.Pool.String(it.CommitID),
			CommitTimeStamp: t,
			ID:              pr.sess.Pool.String(it.PackageID),
			Version:         v,
		})
	}
	return out, nil
}
