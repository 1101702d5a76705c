// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import (
	"os"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := saveCursor(dir, want); err != nil {
		t.Fatalf("saveCursor: %v", err)
	}
	got, err := loadCursor(dir)
	if err != nil {
		t.Fatalf("loadCursor: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("loadCursor() = %s, want %s", got, want)
	}
}

func TestCursorMissingFileIsMinTime(t *testing.T) {
	dir := t.TempDir()
	got, err := loadCursor(dir)
	if err != nil {
		t.Fatalf("loadCursor: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("loadCursor() with no file = %s, want zero time", got)
	}
}

func TestAppendLines(t *testing.T) {
	dir := t.TempDir()
	if err := appendLines(dir, "updatedFiles.txt", []string{"a", "b"}); err != nil {
		t.Fatalf("appendLines: %v", err)
	}
	if err := appendLines(dir, "updatedFiles.txt", []string{"c"}); err != nil {
		t.Fatalf("appendLines: %v", err)
	}
	data, err := os.ReadFile(dir + "/updatedFiles.txt")
	if err != nil {
		t.Fatalf("os.ReadFile: %v", err)
	}
	if string(data) != "a\nb\nc\n" {
		t.Errorf("updatedFiles.txt = %q", data)
	}
}
