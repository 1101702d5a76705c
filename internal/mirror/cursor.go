// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// cursorFile is the per-output-root file name the driver persists its
// cursor to.
const cursorFile = "cursor.json"

// cursorDoc mirrors the on-disk JSON shape: a single ISO-8601 field, in
// time.RFC3339Nano form, always UTC.
type cursorDoc struct {
	Cursor string `json:"cursor"`
}

// minTime is the cursor value used when no cursor file exists yet: every
// catalog entry's commit timestamp is after it, so the first run sees the
// whole catalog.
var minTime = time.Time{}

// loadCursor reads {dir}/cursor.json, returning minTime if it doesn't
// exist.
func loadCursor(dir string) (_ time.Time, err error) {
	defer derrors.Add(&err, "mirror.loadCursor(%q)", dir)

	data, err := os.ReadFile(filepath.Join(dir, cursorFile))
	if os.IsNotExist(err) {
		return minTime, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%v: %w", err, derrors.IOError)
	}
	var doc cursorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("%v: %w", err, derrors.ContentInvalid)
	}
	t, err := time.Parse(time.RFC3339Nano, doc.Cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cursor %q: %v: %w", doc.Cursor, err, derrors.ContentInvalid)
	}
	return t, nil
}

// saveCursor writes t to {dir}/cursor.json via a temp-sibling-then-rename,
// so a crash never leaves a partially written cursor file (spec §5,
// Shared-resource policy).
func saveCursor(dir string, t time.Time) (err error) {
	defer derrors.Add(&err, "mirror.saveCursor(%q, %s)", dir, t)

	data, err := json.Marshal(cursorDoc{Cursor: t.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, cursorFile), data)
}

// atomicWrite writes data to a temp file alongside path, then renames it
// into place.
func atomicWrite(path string, data []byte) (err error) {
	defer derrors.Add(&err, "mirror.atomicWrite(%q)", path)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%v: %w", err, derrors.IOError)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%v: %w", err, derrors.IOError)
	}
	return nil
}

// appendLines appends each of lines, one per line, to {dir}/name,
// creating it if necessary.
func appendLines(dir, name string, lines []string) (err error) {
	defer derrors.Add(&err, "mirror.appendLines(%q, %q)", dir, name)
	if len(lines) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%v: %w", err, derrors.IOError)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			return fmt.Errorf("%v: %w", err, derrors.IOError)
		}
	}
	return nil
}
