// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archive reads the two things the mirror driver needs out of a
// downloaded .nupkg: its manifest entry and a content hash of the whole
// archive (spec §1, Out of scope — "extract the named manifest entry to
// a path" and "compute a content hash of the archive" are the only
// archive-internal operations the core requires).
package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// MaxManifestSize is the largest manifest entry ReadManifest will read
// into memory. A real .nuspec is a few kilobytes; this bounds a
// malformed or malicious archive from exhausting memory.
var MaxManifestSize = uint64(10e6)

// ReadManifest decompresses the .nuspec entry from a .nupkg archive's raw
// bytes and returns its contents. NuGet packages carry exactly one
// .nuspec file at the archive root.
func ReadManifest(data []byte) (_ []byte, err error) {
	defer derrors.Wrap(&err, "archive.ReadManifest")

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip.NewReader: %v: %w", err, derrors.ContentInvalid)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".nuspec") {
			continue
		}
		if f.UncompressedSize64 > MaxManifestSize {
			return nil, fmt.Errorf("manifest %q is %d bytes, over the %d limit: %w", f.Name, f.UncompressedSize64, MaxManifestSize, derrors.ContentInvalid)
		}
		return readZipFile(f)
	}
	return nil, fmt.Errorf("no .nuspec entry found in archive: %w", derrors.ContentInvalid)
}

// readZipFile decompresses f and returns its uncompressed contents.
func readZipFile(f *zip.File) (_ []byte, err error) {
	defer derrors.Add(&err, "archive.readZipFile(%q)", f.Name)

	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("f.Open(): %v", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll(r): %v", err)
	}
	return b, nil
}

// Hash returns the base64 standard encoding of the SHA-512 digest of
// data, the form NuGet's .nupkg.sha512 sidecar files use.
func Hash(data []byte) string {
	sum := sha512.Sum512(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
