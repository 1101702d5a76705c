// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package storage

import "syscall"

// freeBytes returns the free space available on the filesystem holding
// path, or 0 if path is empty (a non-local root) or the statfs call
// fails. Callers only compare this across local roots; Select never
// ranks a remote root by this value.
func freeBytes(path string) uint64 {
	if path == "" {
		return 0
	}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}
