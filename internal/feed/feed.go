// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feed reads a repository that exposes only a package-base-address
// index — no catalog — by enumerating versions per id directly (spec
// §4.9). It also probes whether a catalog actually exists, treating its
// absence as a successful negative rather than an error: a caller that
// wants the richer catalog-backed reader first asks HasCatalog.
package feed

import (
	"context"
	"fmt"

	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/serviceindex"
	"github.com/nugetmirror/catalogmirror/internal/uri"
	"github.com/nugetmirror/catalogmirror/internal/version"
)

// Reader enumerates package versions through the package-base-address
// service alone.
type Reader struct {
	fetcher *fetch.Client
	builder uri.Builder
	index   *serviceindex.Index
}

// NewReader returns a Reader for the repository described by idx.
func NewReader(fetcher *fetch.Client, idx *serviceindex.Index) (_ *Reader, err error) {
	defer derrors.Wrap(&err, "feed.NewReader")
	packageBase, err := idx.PackageBaseAddressURI()
	if err != nil {
		return nil, err
	}
	return &Reader{
		fetcher: fetcher,
		builder: uri.NewBuilder(packageBase, ""),
		index:   idx,
	}, nil
}

// HasCatalog reports whether the underlying service index publishes a
// catalog service. Its absence is not an error: some repositories
// (Azure DevOps feeds, some private NuGet servers) only ever publish a
// package-base-address index.
func (r *Reader) HasCatalog() bool { return r.index.HasCatalog() }

// packageBaseIndex mirrors the wire format of {packageBase}/{id}/index.json.
type packageBaseIndex struct {
	Versions []string `json:"versions"`
}

// Versions fetches and parses the version list published for id.
func (r *Reader) Versions(ctx context.Context, id string) (_ []version.Version, err error) {
	defer derrors.Wrap(&err, "feed.Reader.Versions(ctx, %q)", id)

	var idx packageBaseIndex
	if err := r.fetcher.FetchJSON(ctx, r.builder.PackageBaseIndex(id), &idx); err != nil {
		return nil, err
	}
	out := make([]version.Version, 0, len(idx.Versions))
	for _, s := range idx.Versions {
		v, err := version.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing version %q for %q: %v: %w", s, id, err, derrors.ContentInvalid)
		}
		out = append(out, v)
	}
	return out, nil
}

// Entries fetches every version of id and returns one CatalogEntry-shaped
// record per (id, version), with commit metadata left unset: a
// catalog-less feed carries no publish-time or commit-id information
// (spec §4.9).
func (r *Reader) Entries(ctx context.Context, id string) (_ []catalog.CatalogEntry, err error) {
	defer derrors.Wrap(&err, "feed.Reader.Entries(ctx, %q)", id)

	versions, err := r.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.CatalogEntry, len(versions))
	for i, v := range versions {
		out[i] = catalog.CatalogEntry{
			ID:      id,
			Version: v,
			Type:    catalog.EntryAddOrUpdate,
		}
	}
	return out, nil
}
