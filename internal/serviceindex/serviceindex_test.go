// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package serviceindex

import (
	"errors"
	"testing"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

const rootDoc = `{
  "version": "3.0.0",
  "resources": [
    {"@id": "https://example.org/catalog/index.json", "@type": "Catalog/3.0.0"},
    {"@id": "https://example.org/flatcontainer/", "@type": "PackageBaseAddress/3.0.0"},
    {"@id": "https://example.org/registration5/", "@type": "RegistrationsBaseUrl/3.6.0"},
    {"@id": "https://example.org/registration3/", "@type": "RegistrationsBaseUrl/3.0.0-beta"}
  ]
}`

func TestParse(t *testing.T) {
	idx, err := Parse([]byte(rootDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !idx.HasCatalog() {
		t.Error("HasCatalog() = false, want true")
	}
	if uri, err := idx.CatalogServiceURI(); err != nil || uri != "https://example.org/catalog/index.json" {
		t.Errorf("CatalogServiceURI() = %q, %v", uri, err)
	}
	if uri, err := idx.PackageBaseAddressURI(); err != nil || uri != "https://example.org/flatcontainer/" {
		t.Errorf("PackageBaseAddressURI() = %q, %v", uri, err)
	}
	// Prefers 3.6.0 over 3.0.0-beta.
	if uri, err := idx.RegistrationBaseURI(); err != nil || uri != "https://example.org/registration5/" {
		t.Errorf("RegistrationBaseURI() = %q, %v", uri, err)
	}
	if _, ok := idx.PackageIndexURI(); ok {
		t.Error("PackageIndexURI() ok = true, want false (not published)")
	}
}

func TestParseMissingResource(t *testing.T) {
	idx, err := Parse([]byte(`{"resources": [{"@id": "https://example.org/flatcontainer/", "@type": "PackageBaseAddress/3.0.0"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.HasCatalog() {
		t.Error("HasCatalog() = true, want false")
	}
	if _, err := idx.CatalogServiceURI(); !errors.Is(err, derrors.ConfigurationError) {
		t.Errorf("CatalogServiceURI() err = %v, want ConfigurationError", err)
	}
}

func TestParseNoResourcesArray(t *testing.T) {
	if _, err := Parse([]byte(`{"version": "3.0.0"}`)); !errors.Is(err, derrors.ConfigurationError) {
		t.Errorf("Parse() err = %v, want ConfigurationError", err)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); !errors.Is(err, derrors.ContentInvalid) {
		t.Errorf("Parse() err = %v, want ContentInvalid", err)
	}
}
