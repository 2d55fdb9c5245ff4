// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"context"
	"io"
	"os"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// readHandle serves reads directly off an already-opened object-store
// blob. The blob is immutable for the lifetime of this handle: a
// concurrent write lands on a different shadow file and only replaces
// this path's binding on its own release (spec.md §4.3), so no
// locking is needed around the read itself.
type readHandle struct {
	file *os.File
}

var (
	_ gofuse.FileReader   = (*readHandle)(nil)
	_ gofuse.FileReleaser = (*readHandle)(nil)
)

func (h *readHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.file.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *readHandle) Release(ctx context.Context) syscall.Errno {
	h.file.Close()
	return 0
}

// emptyReadHandle serves reads for a file whose content digest is the
// object store's empty-digest sentinel, which is never materialized
// on disk (internal/hashstore.EmptyDigest); every read is simply
// zero bytes, at any offset.
type emptyReadHandle struct{}

var _ gofuse.FileReader = emptyReadHandle{}

func (emptyReadHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(nil), 0
}

// writeHandle writes directly into the copy-on-first-write shadow
// file the daemon handed back from FD_GET_PATH_WRITE, for both Open's
// write path and a freshly created file. On release, it asks the daemon
// to promote the shadow to its content digest (FD_UPDATE), matching
// original_source/src/FUSEFileSystem.cpp's TFSrelease: close the raw
// descriptor first, then send FD_UPDATE.
type writeHandle struct {
	mu     sync.Mutex
	opts   *Options
	path   string
	file   *os.File
	closed bool
}

var (
	_ gofuse.FileWriter   = (*writeHandle)(nil)
	_ gofuse.FileReleaser = (*writeHandle)(nil)
)

func (h *writeHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.file.WriteAt(data, off)
	if err != nil {
		return 0, syscall.EIO
	}
	return uint32(n), 0
}

func (h *writeHandle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		if err := h.file.Close(); err != nil {
			h.mu.Unlock()
			return syscall.EIO
		}
	}
	h.mu.Unlock()

	reply, err := h.opts.Dispatcher.Submit(ctx, "FD_UPDATE", h.path)
	if err != nil || lastPayload(reply) != "TM_ACK" {
		return syscall.EIO
	}
	return 0
}
