// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements the request dispatcher: the
// single-threaded loop that serializes every call into tfs.Manager
// from both request sources (the FUSE adapter and the CLI server),
// spec.md §4.5/§5. It also defines the wire frame used on the CLI
// server's Unix domain socket (the FUSE adapter submits typed values
// in-process and never encodes frames): a fixed 6144-byte record
// with a 16-byte header and up to 6128 bytes of NUL-terminated ASCII
// payload (spec.md §6).
package dispatch
