// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package cliserver exposes the dispatcher's QH_* verb surface over a
// Unix domain socket using the literal frame format of spec.md §6: a
// client writes one fixed-size request frame, the server replies with
// one or more fixed-size frames terminated by a frame carrying
// Complete=true, then the connection closes. This is the one boundary
// where the wire frame's byte layout is load-bearing rather than an
// in-process convenience: the FUSE adapter (package fuseadapter)
// reaches the same dispatcher with typed Go values on a channel and
// never touches Frame at all.
package cliserver
