// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuseadapter mounts a go-fuse v2 filesystem that translates
// kernel VFS callbacks into the FD_* verbs of spec.md §6, submitted to
// a dispatch.Dispatcher rather than calling into internal/tfs
// directly. Every node tracks the POSIX-style path it represents and
// reconstructs it on lookup, the same way the original C++ daemon's
// getRealPath walked a path string rather than holding a live handle
// per inode (original_source/src/FUSEFileSystem.cpp).
//
// One Dispatcher serves one mount view (folder or tag, spec.md §4.5);
// a daemon that wants both views running mounts two filesystems with
// two Dispatchers sharing the same tfs.Manager underneath (the
// Manager is view-agnostic).
package fuseadapter
