// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package tfs implements the metadata manager: the in-process core
// that owns the metadata index and the content-addressed object
// store, and knows the semantics of every folder-view and tag-view
// operation (rename, truncate, dedup, reference-counted unlink,
// cycle-free tag nesting). Manager is built to be driven by exactly
// one goroutine at a time, the dispatcher, mirroring the
// single-threaded execution model of spec.md §5; its own locking
// exists only so package tests can call it directly without standing
// up a dispatcher.
package tfs
