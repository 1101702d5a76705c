// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestOpenWriteRead(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(context.Background(), []string{fmt.Sprintf("file://%s?no_tmp_dir=true", dir)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	root, err := m.Select(ctx, "a/1.0.0/a.1.0.0.nupkg")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := root.WriteAll(ctx, "a/1.0.0/a.1.0.0.nupkg", []byte("data")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	r, ok, err := m.Exists(ctx, "a/1.0.0/a.1.0.0.nupkg")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("Exists() = false, want true")
	}
	got, err := r.ReadAll(ctx, "a/1.0.0/a.1.0.0.nupkg")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("ReadAll() = %q, want %q", got, "data")
	}
}

func TestOpenRequiresRoots(t *testing.T) {
	if _, err := Open(context.Background(), nil); err == nil {
		t.Error("Open(nil) succeeded, want error")
	}
}

func TestSelectPrefersExistingRoot(t *testing.T) {
	d1, d2 := t.TempDir(), t.TempDir()
	m, err := Open(context.Background(), []string{
		fmt.Sprintf("file://%s?no_tmp_dir=true", d1),
		fmt.Sprintf("file://%s?no_tmp_dir=true", d2),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	if err := m.roots[1].WriteAll(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	r, err := m.Select(ctx, "k")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r != m.roots[1] {
		t.Error("Select() did not prefer the root that already has the key")
	}
}

func TestSelectPrefersLocalOverRemote(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(context.Background(), []string{fmt.Sprintf("file://%s?no_tmp_dir=true", dir)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	// Simulate a remote (non-local) root alongside the real local one,
	// without needing live GCS/S3 credentials: same bucket, LocalPath
	// cleared so Select treats it as non-local, the way a gs:// or s3://
	// root would be.
	remote := &Root{URL: "gs://fake-bucket", LocalPath: "", bucket: m.roots[0].bucket}
	m.roots = append(m.roots, remote)

	r, err := m.Select(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r == remote {
		t.Error("Select() picked the remote root over the local root")
	}
}
