// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Command taggablefs-daemon is the TaggableFS metadata manager: it
// owns the object store and metadata index, mounts exactly one view
// (folder or tag) over FUSE, and serves the QH_* CLI protocol on a
// Unix domain socket, all driven through a single dispatcher goroutine
// (spec.md §4.5/§5).
package main
