// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/santhosh-r/TaggableFS/internal/hashstore"
	"github.com/santhosh-r/TaggableFS/internal/metadata"
	"github.com/santhosh-r/TaggableFS/internal/pathutil"
)

// Manager is the metadata manager described in spec.md §1: it owns
// the metadata index and the object store and implements every
// folder-view and tag-view operation on top of them.
type Manager struct {
	mu    sync.Mutex
	idx   *metadata.Index
	store *hashstore.Store

	tempSeq atomic.Uint64
}

// New builds a Manager over an already-open index and object store.
func New(idx *metadata.Index, store *hashstore.Store) *Manager {
	return &Manager{idx: idx, store: store}
}

// StorePath returns the object-store path for a digest or placeholder
// name, for callers (package dispatch) that need to hand a path back
// over the wire after an operation that returns a bare name.
func (m *Manager) StorePath(name string) string {
	return m.store.Path(name)
}

// Stats implements QH_STATS.
func (m *Manager) Stats() (files, tags int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err = m.idx.CountFiles()
	if err != nil {
		return 0, 0, err
	}
	tags, err = m.idx.CountTags()
	if err != nil {
		return 0, 0, err
	}
	return files, tags, nil
}

// resolveFolder walks path's components from the folder-view root,
// failing with ErrNotFound on any missing component. It returns the
// ID of the folder named by path.
func (m *Manager) resolveFolder(path string) (int64, error) {
	folderID := metadata.FolderViewRootID
	for _, name := range pathutil.Split(path) {
		row, err := m.idx.FolderByNameInParent(name, folderID)
		if errors.Is(err, metadata.ErrNotFound) {
			return 0, ErrNotFound
		} else if err != nil {
			return 0, err
		}
		folderID = row.TagID
	}
	return folderID, nil
}

// nextTempName returns a fresh placeholder hash of the shape
// "TEMP<9-digit-seq>" per spec.md §4.3.
func (m *Manager) nextTempName() string {
	seq := m.tempSeq.Add(1)
	return fmt.Sprintf("TEMP%09d", seq)
}

// removeBlobIfUnreferenced unlinks the object-store blob for hash
// unless another file row still references it or it is the
// empty-digest sentinel (spec.md §4.1, §8 boundary behaviors). hash
// must be a real content digest, never a mknod placeholder; use
// releaseOldBlob when the previous hash might be one.
func (m *Manager) removeBlobIfUnreferenced(hash string) error {
	if hash == hashstore.EmptyDigest {
		return nil
	}
	n, err := m.idx.CountFilesByHash(hash)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return m.store.Unlink(hash)
}

// isTempOrShadowHash reports whether hash is a placeholder produced
// by mknod rather than a real content digest; such placeholders never
// share a row, so they are unlinked unconditionally instead of by
// reference count.
func isTempOrShadowHash(hash string) bool {
	return len(hash) >= 4 && hash[:4] == "TEMP"
}

// releaseOldBlob removes the object-store entry for oldHash once it
// has been superseded by newHash, observing the empty-digest
// sentinel and the distinct cleanup rule for mknod placeholders.
func (m *Manager) releaseOldBlob(oldHash, newHash string) error {
	if oldHash == newHash || oldHash == hashstore.EmptyDigest {
		return nil
	}
	if isTempOrShadowHash(oldHash) {
		return m.store.Unlink(oldHash)
	}
	return m.removeBlobIfUnreferenced(oldHash)
}
