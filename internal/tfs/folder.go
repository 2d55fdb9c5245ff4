// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"errors"
	"sort"

	"github.com/santhosh-r/TaggableFS/internal/hashstore"
	"github.com/santhosh-r/TaggableFS/internal/metadata"
	"github.com/santhosh-r/TaggableFS/internal/pathutil"
)

// ListDir implements FD_READ_DIR for the folder view: the union of
// child folder names and child file names, spec.md §4.3.
func (m *Manager) ListDir(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	folderID, err := m.resolveFolder(path)
	if err != nil {
		return nil, err
	}

	folders, err := m.idx.FoldersInParent(folderID)
	if err != nil {
		return nil, err
	}
	files, err := m.idx.FilesInParent(folderID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(folders)+len(files))
	for _, f := range folders {
		names = append(names, f.TagName)
	}
	for _, f := range files {
		names = append(names, f.Filename)
	}
	sort.Strings(names)
	return names, nil
}

// GetAttr implements FD_IF_DIR / the attribute half of a lookup: it
// reports whether path names a folder, and if not, the object-store
// path the caller should lstat for file attributes.
func (m *Manager) GetAttr(path string) (isDir bool, storePath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAttrLocked(path)
}

func (m *Manager) getAttrLocked(path string) (isDir bool, storePath string, err error) {
	dir := pathutil.Dir(path)
	base := pathutil.Base(path)
	if base == "" {
		return true, "", nil // root
	}

	parentID, err := m.resolveFolder(dir)
	if err != nil {
		return false, "", err
	}
	if _, err := m.idx.FolderByNameInParent(base, parentID); err == nil {
		return true, "", nil
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return false, "", err
	}

	file, err := m.idx.FileByNameInParent(base, parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return false, "", ErrNotFound
	} else if err != nil {
		return false, "", err
	}
	return false, m.store.Path(file.Hash), nil
}

// GetPath implements FD_GET_PATH.
func (m *Manager) GetPath(path string) (string, error) {
	_, storePath, err := m.GetAttr(path)
	return storePath, err
}

// Mkdir implements the folder view's mkdir: parent must exist, name
// must not collide with an existing file or folder in the parent.
func (m *Manager) Mkdir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return err
	}
	name := pathutil.Base(path)
	if name == "" {
		return ErrInvalid
	}
	if err := m.checkNameFreeLocked(name, parentID); err != nil {
		return err
	}

	id := m.idx.NextTagID()
	return m.idx.InsertFolder(id, name, parentID)
}

// checkNameFreeLocked returns ErrExists if name is already taken by
// either a file or a folder under parentID (spec.md §3: "no two
// children of F share a basename").
func (m *Manager) checkNameFreeLocked(name string, parentID int64) error {
	if _, err := m.idx.FolderByNameInParent(name, parentID); err == nil {
		return ErrExists
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}
	if _, err := m.idx.FileByNameInParent(name, parentID); err == nil {
		return ErrExists
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}
	return nil
}

// Rmdir implements the folder view's rmdir: the folder must exist and
// hold neither files nor child folders; otherwise it fails with
// ErrNotEmpty.
func (m *Manager) Rmdir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	folderID, err := m.resolveFolder(path)
	if err != nil {
		return err
	}
	if folderID == metadata.FolderViewRootID {
		return ErrInvalid
	}

	files, err := m.idx.FilesInParent(folderID)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return ErrNotEmpty
	}
	folders, err := m.idx.FoldersInParent(folderID)
	if err != nil {
		return err
	}
	if len(folders) > 0 {
		return ErrNotEmpty
	}
	return m.idx.DeleteTag(folderID)
}

// Mknod implements the folder view's mknod: a new, empty file record
// whose hash is a placeholder until the first write/release promotes
// it to a real content digest (spec.md §4.3). It creates the empty
// placeholder blob itself and returns its name; the blob lives at
// m.store.Path(name).
func (m *Manager) Mknod(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return "", err
	}
	name := pathutil.Base(path)
	if name == "" {
		return "", ErrInvalid
	}
	if err := m.checkNameFreeLocked(name, parentID); err != nil {
		return "", err
	}

	tempName := m.nextTempName()
	if err := m.store.CreateEmpty(tempName); err != nil {
		return "", err
	}

	id := m.idx.NextFileID()
	if err := m.idx.InsertFile(id, name, tempName, parentID); err != nil {
		return "", err
	}
	return tempName, nil
}

// GetPathForWrite implements FD_GET_PATH_WRITE: returns the path of
// the copy-on-first-write shadow for path's current content, creating
// it (as a copy of the current blob) if this is the first write since
// the last release.
func (m *Manager) GetPathForWrite(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return "", err
	}
	file, err := m.idx.FileByNameInParent(pathutil.Base(path), parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}

	shadow := m.store.TempPath(file.Hash + ".WRITE")
	if !fileExists(shadow) {
		if err := hashstore.CopyFile(m.store.Path(file.Hash), shadow); err != nil {
			return "", err
		}
	}
	return shadow, nil
}

// Update implements FD_UPDATE: on release, promotes the write shadow
// to its content digest and repoints the file row at it, releasing
// the previous blob if nothing else references it.
func (m *Manager) Update(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return err
	}
	file, err := m.idx.FileByNameInParent(pathutil.Base(path), parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	shadow := m.store.TempPath(file.Hash + ".WRITE")
	if !fileExists(shadow) {
		return nil // release with no intervening write: nothing to promote
	}

	digest, err := hashstore.Digest(shadow)
	if err != nil {
		return err
	}

	if digest == file.Hash {
		return removeIfExists(shadow)
	}
	if digest != hashstore.EmptyDigest {
		if err := m.store.Materialize(shadow, digest); err != nil {
			return err
		}
	} else {
		// Zero-byte write: the sentinel must not be renamed into the
		// store (spec.md §8), so just discard the shadow.
		if err := removeIfExists(shadow); err != nil {
			return err
		}
	}

	oldHash := file.Hash
	if err := m.idx.UpdateFileHash(file.FileID, digest); err != nil {
		return err
	}
	return m.releaseOldBlob(oldHash, digest)
}

// Truncate implements the folder view's truncate(path, length).
func (m *Manager) Truncate(path string, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return err
	}
	file, err := m.idx.FileByNameInParent(pathutil.Base(path), parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	refCount, err := m.idx.CountFilesByHash(file.Hash)
	if err != nil {
		return err
	}

	target := m.store.Path(file.Hash)
	if refCount > 1 {
		// Shared blob: truncate a private copy, then promote it, so
		// other rows referencing the pre-truncate digest are
		// unaffected (spec.md §8 boundary behaviors).
		shadow := m.store.TempPath(file.Hash + ".TRUNCATE")
		if err := hashstore.CopyFile(target, shadow); err != nil {
			return err
		}
		if err := truncateFile(shadow, length); err != nil {
			removeIfExists(shadow)
			return err
		}
		digest, err := hashstore.Digest(shadow)
		if err != nil {
			removeIfExists(shadow)
			return err
		}
		if digest == hashstore.EmptyDigest {
			// The empty-digest sentinel is never renamed into the store.
			if err := removeIfExists(shadow); err != nil {
				return err
			}
		} else if err := m.store.Materialize(shadow, digest); err != nil {
			return err
		}
		if err := m.idx.UpdateFileHash(file.FileID, digest); err != nil {
			return err
		}
		return nil // the shared original blob keeps its other referents
	}

	if err := truncateFile(target, length); err != nil {
		return err
	}
	digest, err := hashstore.Digest(target)
	if err != nil {
		return err
	}
	if digest == file.Hash {
		return nil
	}
	if digest == hashstore.EmptyDigest {
		// Truncated to zero bytes: this row was the blob's only
		// referent, and the sentinel is never renamed into the store.
		if err := removeIfExists(target); err != nil {
			return err
		}
	} else if err := m.store.Materialize(target, digest); err != nil {
		return err
	}
	return m.idx.UpdateFileHash(file.FileID, digest)
}

// Unlink implements the folder view's unlink(path): removes the file
// row, removes its blob if it was the last reference, and removes its
// ID from every tag that referenced it. It returns the IDs of tags
// that referenced the destroyed record, for rename-overwrite to
// re-bind (spec.md §4.3).
func (m *Manager) Unlink(path string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return nil, err
	}
	file, err := m.idx.FileByNameInParent(pathutil.Base(path), parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return m.unlinkFileLocked(file)
}

// unlinkFileLocked performs the shared body of Unlink, callable from
// rename-overwrite with mu already held.
func (m *Manager) unlinkFileLocked(file metadata.FileRow) ([]int64, error) {
	owningTags, err := m.tagsOfFileLocked(file.FileID)
	if err != nil {
		return nil, err
	}
	for _, tagID := range owningTags {
		tag, err := m.idx.TagByID(tagID)
		if err != nil {
			return nil, err
		}
		if err := m.idx.SetFilesIDs(tagID, pathutil.RemoveID(tag.FilesIDs, file.FileID)); err != nil {
			return nil, err
		}
	}

	if err := m.idx.DeleteFile(file.FileID); err != nil {
		return nil, err
	}
	if err := m.releaseOldBlob(file.Hash, ""); err != nil {
		return nil, err
	}
	return owningTags, nil
}

// Rename implements the folder view's four-case rename (spec.md §4.3).
func (m *Manager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldParent, err := m.resolveFolder(pathutil.Dir(oldPath))
	if err != nil {
		return err
	}
	oldName := pathutil.Base(oldPath)
	newParent, err := m.resolveFolder(pathutil.Dir(newPath))
	if err != nil {
		return err
	}
	newName := pathutil.Base(newPath)

	srcFile, srcFileErr := m.idx.FileByNameInParent(oldName, oldParent)
	srcFolder, srcFolderErr := m.idx.FolderByNameInParent(oldName, oldParent)

	switch {
	case srcFileErr == nil:
		return m.renameFileLocked(srcFile, newName, newParent)
	case srcFolderErr == nil:
		return m.renameFolderLocked(srcFolder, newName, newParent)
	default:
		return ErrNotFound
	}
}

func (m *Manager) renameFileLocked(src metadata.FileRow, newName string, newParent int64) error {
	if _, err := m.idx.FolderByNameInParent(newName, newParent); err == nil {
		return ErrInvalid // file cannot overwrite a folder
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}

	dstFile, err := m.idx.FileByNameInParent(newName, newParent)
	if errors.Is(err, metadata.ErrNotFound) {
		// file -> nothing: verify no tag on src already has newName.
		tags, terr := m.tagsOfFileLocked(src.FileID)
		if terr != nil {
			return terr
		}
		for _, tagID := range tags {
			tag, terr := m.idx.TagByID(tagID)
			if terr != nil {
				return terr
			}
			for _, fid := range tag.FilesIDs {
				if fid == src.FileID {
					continue
				}
				other, oerr := m.idx.FileByID(fid)
				if oerr != nil {
					return oerr
				}
				if other.Filename == newName {
					return ErrExists
				}
			}
		}
		return m.idx.RenameFile(src.FileID, newName, newParent)
	} else if err != nil {
		return err
	}

	// file -> existing file: overwrite. Unlink the destination,
	// capturing its tag bindings, then re-bind them to src.
	owningTags, err := m.unlinkFileLocked(dstFile)
	if err != nil {
		return err
	}
	if err := m.idx.RenameFile(src.FileID, newName, newParent); err != nil {
		return err
	}
	for _, tagID := range owningTags {
		tag, err := m.idx.TagByID(tagID)
		if err != nil {
			return err
		}
		if err := m.idx.SetFilesIDs(tagID, pathutil.AppendID(tag.FilesIDs, src.FileID)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) renameFolderLocked(src metadata.TagRow, newName string, newParent int64) error {
	if err := m.checkNameFreeLocked(newName, newParent); err != nil {
		return err
	}
	return m.idx.RenameFolder(src.TagID, newName, newParent)
}

// fileExists, removeIfExists, truncateFile are small os-level helpers
// defined in fileutil.go.
