// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

func buildNupkg(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadManifest(t *testing.T) {
	data := buildNupkg(t, map[string]string{
		"a.nuspec":          "<package/>",
		"lib/net6.0/a.dll":  "binary",
		"_rels/.rels":       "rels",
	})
	got, err := ReadManifest(data)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if string(got) != "<package/>" {
		t.Errorf("ReadManifest() = %q", got)
	}
}

func TestReadManifestMissing(t *testing.T) {
	data := buildNupkg(t, map[string]string{"lib/net6.0/a.dll": "binary"})
	if _, err := ReadManifest(data); !errors.Is(err, derrors.ContentInvalid) {
		t.Errorf("ReadManifest() err = %v, want ContentInvalid", err)
	}
}

func TestHashDeterministic(t *testing.T) {
	data := []byte("hello")
	if Hash(data) != Hash(data) {
		t.Error("Hash is not deterministic")
	}
	if Hash(data) == Hash([]byte("world")) {
		t.Error("Hash collided for different inputs")
	}
}
