// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage is the mirror driver's multi-root output layer (spec
// §4.13, supplementing §4.10.1). Each configured root is a gocloud.dev
// blob.Bucket, so a root can be a local directory, a GCS bucket, or an
// S3 bucket without the driver caring which. When more than one root is
// configured, Select prefers a root that already holds the archive, then
// falls back to the local root reporting the most free disk space; a
// remote root is chosen only when no local root is configured.
package storage

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// Root is one configured storage destination.
type Root struct {
	// URL is the gocloud.dev blob URL, e.g. "file:///var/mirror/local"
	// or "gs://my-bucket/prefix".
	URL string
	// LocalPath is set when URL is a "file://" root, and is used to
	// query free disk space; empty for remote roots.
	LocalPath string

	bucket *blob.Bucket
}

// Multi is a collection of opened storage roots.
type Multi struct {
	roots []*Root
}

// Open opens every root's bucket and returns a Multi ready for writes.
func Open(ctx context.Context, urls []string) (_ *Multi, err error) {
	defer derrors.Wrap(&err, "storage.Open(%v)", urls)
	if len(urls) == 0 {
		return nil, fmt.Errorf("storage.Open: no roots configured: %w", derrors.ConfigurationError)
	}
	m := &Multi{}
	for _, u := range urls {
		b, err := blob.OpenBucket(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("blob.OpenBucket(%q): %v: %w", u, err, derrors.ConfigurationError)
		}
		m.roots = append(m.roots, &Root{URL: u, LocalPath: localPath(u), bucket: b})
	}
	return m, nil
}

// Close closes every root's bucket.
func (m *Multi) Close() error {
	var firstErr error
	for _, r := range m.roots {
		if err := r.bucket.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Exists reports whether key exists in any root, returning the first
// root it's found in.
func (m *Multi) Exists(ctx context.Context, key string) (_ *Root, _ bool, err error) {
	defer derrors.Wrap(&err, "storage.Multi.Exists(ctx, %q)", key)
	for _, r := range m.roots {
		ok, err := r.bucket.Exists(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Select picks the root to write key to: a root already holding it, or
// else a local ("file://") root with the most free space. Local roots
// always take priority over remote (gs://, s3://) roots, since free
// space is only meaningfully comparable among local roots; a remote
// root is picked, in configured order, only when no local root is
// configured at all.
func (m *Multi) Select(ctx context.Context, key string) (_ *Root, err error) {
	defer derrors.Wrap(&err, "storage.Multi.Select(ctx, %q)", key)
	if r, ok, err := m.Exists(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return r, nil
	}

	var best *Root
	var bestFree uint64
	for _, r := range m.roots {
		if r.LocalPath == "" {
			continue
		}
		if f := freeBytes(r.LocalPath); best == nil || f > bestFree {
			best, bestFree = r, f
		}
	}
	if best != nil {
		return best, nil
	}
	return m.roots[0], nil
}

// Exists reports whether key exists in root specifically.
func (r *Root) Exists(ctx context.Context, key string) (_ bool, err error) {
	defer derrors.Wrap(&err, "storage.Root.Exists(ctx, %q)", key)
	return r.bucket.Exists(ctx, key)
}

// WriteAll writes data to key in root.
func (r *Root) WriteAll(ctx context.Context, key string, data []byte) (err error) {
	defer derrors.Wrap(&err, "storage.Root.WriteAll(ctx, %q)", key)
	return r.bucket.WriteAll(ctx, key, data, nil)
}

// ReadAll reads the bytes at key in root.
func (r *Root) ReadAll(ctx context.Context, key string) (_ []byte, err error) {
	defer derrors.Wrap(&err, "storage.Root.ReadAll(ctx, %q)", key)
	return r.bucket.ReadAll(ctx, key)
}

// Attrs returns key's last-modified time and size, for OverwriteIfNewer
// comparisons.
func (r *Root) Attrs(ctx context.Context, key string) (_ *blob.Attributes, err error) {
	defer derrors.Wrap(&err, "storage.Root.Attrs(ctx, %q)", key)
	return r.bucket.Attributes(ctx, key)
}

// localPath returns u's filesystem path if it's a "file://" URL, else "".
// Any trailing query string (fileblob accepts "?no_tmp_dir=true" and
// similar options) is stripped.
func localPath(u string) string {
	const prefix = "file://"
	if len(u) <= len(prefix) || u[:len(prefix)] != prefix {
		return ""
	}
	p := u[len(prefix):]
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
