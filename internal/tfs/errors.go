// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import "errors"

// Sentinel errors naming the error kinds of spec.md §7. The dispatcher
// (package dispatch) maps these to syscall.Errno for the FUSE adapter
// or to client-facing sentences for the CLI; tfs itself never renders
// text.
var (
	// ErrNotFound covers failed path resolution and unknown tags.
	ErrNotFound = errors.New("tfs: not found")
	// ErrExists covers a name collision with an existing sibling or
	// tagged basename.
	ErrExists = errors.New("tfs: already exists")
	// ErrNotEmpty covers rmdir/delete-tag on a populated container.
	ErrNotEmpty = errors.New("tfs: not empty")
	// ErrCycle covers a nest that would create a directed cycle in
	// the tag DAG.
	ErrCycle = errors.New("tfs: would create a cycle")
	// ErrInvalid covers a request that is structurally disallowed,
	// e.g. an unsupported rename combination or a write-side
	// operation attempted in the tag view.
	ErrInvalid = errors.New("tfs: invalid operation")
)
