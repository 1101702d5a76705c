// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/serviceindex"
)

func TestReaderVersionsAndEntries(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/flatcontainer/a/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"versions": ["1.0.0", "1.1.0", "2.0.0-rc.1"]}`)
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	doc := fmt.Sprintf(`{"resources": [{"@id": %q, "@type": "PackageBaseAddress/3.0.0"}]}`, srv.URL+"/flatcontainer/")
	idx, err := serviceindex.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("serviceindex.Parse: %v", err)
	}
	if idx.HasCatalog() {
		t.Error("HasCatalog() = true, want false (no catalog published)")
	}

	r, err := NewReader(fetch.New(), idx)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.HasCatalog() {
		t.Error("Reader.HasCatalog() = true, want false")
	}

	versions, err := r.Versions(context.Background(), "A")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("Versions() = %v, want 3 entries", versions)
	}

	entries, err := r.Entries(context.Background(), "A")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ID != "A" {
			t.Errorf("entry.ID = %q, want %q", e.ID, "A")
		}
	}
}

func TestReaderRequiresPackageBaseAddress(t *testing.T) {
	idx, err := serviceindex.Parse([]byte(`{"resources": []}`))
	if err != nil {
		t.Fatalf("serviceindex.Parse: %v", err)
	}
	if _, err := NewReader(fetch.New(), idx); err == nil {
		t.Error("NewReader() succeeded, want error (no PackageBaseAddress service)")
	}
}
