// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import "fmt"

// Layout selects the on-disk key scheme a downloaded archive (and, for
// Layout V3, its sidecars) is written under (spec §4.10.1).
type Layout int

const (
	// LayoutV2 writes {id}/{id}.{version}.nupkg: one directory per id,
	// every version's archive alongside its siblings.
	LayoutV2 Layout = iota + 1
	// LayoutV3 writes {id}/{version}/{id}.{version}.nupkg, plus a
	// {version}.nupkg.sha512 hash sidecar and a {id}.nuspec manifest
	// sidecar extracted from the archive.
	LayoutV3
)

func (l Layout) String() string {
	switch l {
	case LayoutV2:
		return "v2"
	case LayoutV3:
		return "v3"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout parses the --folder-format flag value.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "v2":
		return LayoutV2, nil
	case "v3":
		return LayoutV3, nil
	default:
		return 0, fmt.Errorf("mirror.ParseLayout(%q): want \"v2\" or \"v3\"", s)
	}
}

// archiveKey returns the storage key the .nupkg is written to.
func (l Layout) archiveKey(id, lowerVersion string) string {
	switch l {
	case LayoutV3:
		return fmt.Sprintf("%s/%s/%s.%s.nupkg", id, lowerVersion, id, lowerVersion)
	default:
		return fmt.Sprintf("%s/%s.%s.nupkg", id, id, lowerVersion)
	}
}

// hashKey returns the storage key the sha512 sidecar is written to.
// Only meaningful for LayoutV3.
func (l Layout) hashKey(id, lowerVersion string) string {
	return fmt.Sprintf("%s/%s/%s.nupkg.sha512", id, lowerVersion, lowerVersion)
}

// manifestKey returns the storage key the extracted .nuspec is written
// to. Only meaningful for LayoutV3.
func (l Layout) manifestKey(id, lowerVersion string) string {
	return fmt.Sprintf("%s/%s/%s.nuspec", id, lowerVersion, id)
}

// DownloadMode controls whether an existing on-disk archive is
// overwritten. Values are deliberately distinct (the upstream tool this
// is modeled on assigns FailIfExists and Force the same underlying
// value; that defect is not reproduced here).
type DownloadMode int

const (
	// FailIfExists errors out if the archive key already exists.
	FailIfExists DownloadMode = iota + 1
	// SkipIfExists leaves an existing archive untouched.
	SkipIfExists
	// OverwriteIfNewer writes only when the catalog commit timestamp is
	// strictly later than the existing archive's mtime.
	OverwriteIfNewer
	// Force always writes.
	Force
)

func (m DownloadMode) String() string {
	switch m {
	case FailIfExists:
		return "fail-if-exists"
	case SkipIfExists:
		return "skip-if-exists"
	case OverwriteIfNewer:
		return "overwrite-if-newer"
	case Force:
		return "force"
	default:
		return fmt.Sprintf("DownloadMode(%d)", int(m))
	}
}

// ParseDownloadMode parses the --mode flag value.
func ParseDownloadMode(s string) (DownloadMode, error) {
	switch s {
	case "fail-if-exists":
		return FailIfExists, nil
	case "skip-if-exists":
		return SkipIfExists, nil
	case "overwrite-if-newer":
		return OverwriteIfNewer, nil
	case "force":
		return Force, nil
	default:
		return 0, fmt.Errorf("mirror.ParseDownloadMode(%q): want fail-if-exists, skip-if-exists, overwrite-if-newer or force", s)
	}
}
