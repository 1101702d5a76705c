// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/intern"
	"github.com/nugetmirror/catalogmirror/internal/serviceindex"
	"github.com/nugetmirror/catalogmirror/internal/storage"
	"github.com/nugetmirror/catalogmirror/internal/uri"
)

// buildNupkg returns the bytes of a minimal in-memory .nupkg archive.
func buildNupkg(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("a.nuspec")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("<package/>")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestRepo(t *testing.T) (*httptest.Server, []byte) {
	t.Helper()
	nupkg := buildNupkg(t)
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)

	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources": [
			{"@id": %q, "@type": "Catalog/3.0.0"},
			{"@id": %q, "@type": "PackageBaseAddress/3.0.0"},
			{"@id": %q, "@type": "RegistrationsBaseUrl/3.6.0"}
		]}`, srv.URL+"/catalog/index.json", srv.URL+"/flatcontainer", srv.URL+"/registration")
	})
	mux.HandleFunc("/catalog/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items": [
			{"@id": %q, "@type": "CatalogPage", "commitId": "c1", "commitTimeStamp": "2024-01-01T00:00:00Z"}
		]}`, srv.URL+"/catalog/page0.json")
	})
	mux.HandleFunc("/catalog/page0.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items": [
			{"@id": %q, "@type": "nuget:PackageDetails", "commitId": "c1",
			 "commitTimeStamp": "2024-01-01T00:00:00Z", "nuget:id": "A", "nuget:version": "1.0.0"}
		]}`, srv.URL+"/catalog/c1.json")
	})
	mux.HandleFunc("/flatcontainer/a/1.0.0/a.1.0.0.nupkg", func(w http.ResponseWriter, r *http.Request) {
		w.Write(nupkg)
	})
	return srv, nupkg
}

func newSession(t *testing.T, srv *httptest.Server) *catalog.Session {
	t.Helper()
	fetcher := fetch.New()
	idxData, err := fetcher.FetchManifest(context.Background(), srv.URL+"/index.json")
	if err != nil {
		t.Fatalf("fetching index.json: %v", err)
	}
	idx, err := serviceindex.Parse(idxData)
	if err != nil {
		t.Fatalf("serviceindex.Parse: %v", err)
	}
	packageBase, _ := idx.PackageBaseAddressURI()
	registrationBase, _ := idx.RegistrationBaseURI()
	return &catalog.Session{
		ServiceIndex: idx,
		Fetcher:      fetcher,
		Pool:         intern.NewPool(),
		Builder:      uri.NewBuilder(packageBase, registrationBase),
	}
}

func TestRunMirrorsLayoutV3(t *testing.T) {
	srv, nupkg := newTestRepo(t)
	defer srv.Close()

	sess := newSession(t, srv)
	out := t.TempDir()
	roots, err := storage.Open(context.Background(), []string{"file://" + out + "?no_tmp_dir=true"})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer roots.Close()

	d := Driver{
		Session:    sess,
		Roots:      roots,
		ControlDir: out,
		Layout:     LayoutV3,
		Mode:       Force,
		Delay:      0,
	}
	outcome, err := Run(context.Background(), d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("Run() errors = %v", outcome.Errors)
	}
	if len(outcome.UpdatedFiles) != 3 {
		t.Fatalf("Run() updated %d files, want 3 (archive, hash, manifest)", len(outcome.UpdatedFiles))
	}

	archivePath := filepath.Join(out, "a", "1.0.0", "a.1.0.0.nupkg")
	got, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading mirrored archive: %v", err)
	}
	if !bytes.Equal(got, nupkg) {
		t.Error("mirrored archive bytes don't match source")
	}
	if _, err := os.Stat(filepath.Join(out, "a", "1.0.0", "1.0.0.nupkg.sha512")); err != nil {
		t.Errorf("hash sidecar missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "a", "1.0.0", "a.nuspec")); err != nil {
		t.Errorf("manifest sidecar missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "cursor.json")); err != nil {
		t.Errorf("cursor.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "lastRunErrors.txt")); err == nil {
		t.Error("lastRunErrors.txt should not exist when there were no errors")
	}
}

func TestRunIsIdempotentWithSkipIfExists(t *testing.T) {
	srv, _ := newTestRepo(t)
	defer srv.Close()

	sess := newSession(t, srv)
	out := t.TempDir()
	roots, err := storage.Open(context.Background(), []string{"file://" + out + "?no_tmp_dir=true"})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer roots.Close()

	d := Driver{
		Session:    sess,
		Roots:      roots,
		ControlDir: out,
		Layout:     LayoutV2,
		Mode:       SkipIfExists,
		Delay:      0,
	}
	if _, err := Run(context.Background(), d); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	// Second run starts from the persisted cursor, so the window is
	// empty and nothing new is queued.
	outcome, err := Run(context.Background(), d)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if outcome.EntriesQueued != 0 {
		t.Errorf("second Run() queued %d entries, want 0", outcome.EntriesQueued)
	}
}
