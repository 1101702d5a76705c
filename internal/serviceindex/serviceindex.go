// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serviceindex parses a repository's root service-index document
// and exposes typed service URIs by well-known type string, with ordered
// fallbacks for versioned resource types (spec §4.3, wire format §6.2).
package serviceindex

import (
	"encoding/json"
	"fmt"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// Accepted @type strings, in order of preference where more than one
// variant of a resource exists.
var (
	catalogTypes = []string{
		"Catalog/3.0.0",
		"http://schema.emgarten.com/sleet#Catalog/1.0.0",
	}
	registrationTypes = []string{
		"RegistrationsBaseUrl/Versioned",
		"RegistrationsBaseUrl/3.6.0",
		"RegistrationsBaseUrl/3.4.0",
		"RegistrationsBaseUrl/3.0.0-beta",
	}
	packageBaseAddressTypes = []string{
		"PackageBaseAddress/3.0.0",
	}
	packageIndexTypes = []string{
		"http://schema.emgarten.com/sleet#SymbolsPackageIndex/1.0.0",
	}
)

// resource is one element of the root document's "resources" array.
type resource struct {
	ID   string `json:"@id"`
	Type string `json:"@type"`
}

type document struct {
	Resources []resource `json:"resources"`
}

// Index is a parsed service index: every resource's base URI, indexed by
// its declared @type.
type Index struct {
	byType map[string][]string
}

// Parse parses the root service-index document's raw JSON body.
func Parse(data []byte) (_ *Index, err error) {
	defer derrors.Wrap(&err, "serviceindex.Parse")

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%v: %w", err, derrors.ContentInvalid)
	}
	if doc.Resources == nil {
		return nil, fmt.Errorf("root document has no %q array: %w", "resources", derrors.ConfigurationError)
	}
	idx := &Index{byType: map[string][]string{}}
	for _, r := range doc.Resources {
		idx.byType[r.Type] = append(idx.byType[r.Type], r.ID)
	}
	return idx, nil
}

// firstOf returns the first base URI registered under any of types, in
// order, or ("", false).
func (idx *Index) firstOf(types []string) (string, bool) {
	for _, t := range types {
		if uris := idx.byType[t]; len(uris) > 0 {
			return uris[0], true
		}
	}
	return "", false
}

// CatalogServiceURI returns the catalog root URI, preferring the
// standard NuGet catalog type and falling back to sleet's alternative.
func (idx *Index) CatalogServiceURI() (string, error) {
	if uri, ok := idx.firstOf(catalogTypes); ok {
		return uri, nil
	}
	return "", fmt.Errorf("no resource of type %v: %w", catalogTypes, derrors.ConfigurationError)
}

// HasCatalog reports whether a catalog service is published, without
// treating its absence as an error — used by the catalog-less feed reader
// to probe "does this feed have a catalog?" as a successful negative
// (spec §4.9).
func (idx *Index) HasCatalog() bool {
	_, ok := idx.firstOf(catalogTypes)
	return ok
}

// PackageBaseAddressURI returns the base of the archive/manifest layout.
func (idx *Index) PackageBaseAddressURI() (string, error) {
	if uri, ok := idx.firstOf(packageBaseAddressTypes); ok {
		return uri, nil
	}
	return "", fmt.Errorf("no resource of type %v: %w", packageBaseAddressTypes, derrors.ConfigurationError)
}

// RegistrationBaseURI returns the preferred registration base, trying
// versioned variants in order.
func (idx *Index) RegistrationBaseURI() (string, error) {
	if uri, ok := idx.firstOf(registrationTypes); ok {
		return uri, nil
	}
	return "", fmt.Errorf("no resource of type %v: %w", registrationTypes, derrors.ConfigurationError)
}

// PackageIndexURI returns the optional symbols/package index base, if
// published.
func (idx *Index) PackageIndexURI() (string, bool) {
	return idx.firstOf(packageIndexTypes)
}
