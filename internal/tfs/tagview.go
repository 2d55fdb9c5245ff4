// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"errors"
	"sort"

	"github.com/santhosh-r/TaggableFS/internal/metadata"
	"github.com/santhosh-r/TaggableFS/internal/pathutil"
)

// resolveTagPath implements the tag view's path resolution algorithm,
// spec.md §4.4: the last component names a tag by its globally unique
// name; every preceding component must resolve to a tag present in
// that tag's ancestor set, walked via parent_tags. The tag view root
// "/" maps to tag ID 0 and always resolves.
func (m *Manager) resolveTagPath(path string) (int64, error) {
	components := pathutil.Split(path)
	if len(components) == 0 {
		return metadata.TagViewRootID, nil
	}

	last := components[len(components)-1]
	row, err := m.idx.TopLevelTagByName(last)
	if errors.Is(err, metadata.ErrNotFound) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	ancestors, err := m.ancestorsOfLocked(row.TagID)
	if err != nil {
		return 0, err
	}
	for _, name := range components[:len(components)-1] {
		prow, err := m.idx.TopLevelTagByName(name)
		if errors.Is(err, metadata.ErrNotFound) {
			return 0, ErrNotFound
		} else if err != nil {
			return 0, err
		}
		if !ancestors[prow.TagID] {
			return 0, ErrNotFound
		}
	}
	return row.TagID, nil
}

// ancestorsOfLocked returns every tag transitively reachable from
// tagID by walking parent_tags, the ancestor set used both for path
// resolution and for cycle detection.
func (m *Manager) ancestorsOfLocked(tagID int64) (map[int64]bool, error) {
	visited := make(map[int64]bool)
	queue := []int64{tagID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		row, err := m.idx.TagByID(id)
		if err != nil {
			return nil, err
		}
		for _, parent := range row.ParentTags {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return visited, nil
}

// tagFileLookup finds the file with the given basename among tag's
// tagged files.
func tagFileLookup(idx *metadata.Index, tag metadata.TagRow, basename string) (int64, bool, error) {
	for _, fileID := range tag.FilesIDs {
		file, err := idx.FileByID(fileID)
		if err != nil {
			return 0, false, err
		}
		if file.Filename == basename {
			return fileID, true, nil
		}
	}
	return 0, false, nil
}

// ListDirTag implements the tag view's listdir: child tag names
// concatenated with basenames of tagged files (spec.md §4.4). The
// root lists every tag in the flat namespace, since child_tags edges
// only record explicit nest() relationships, not root membership.
func (m *Manager) ListDirTag(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tagID, err := m.resolveTagPath(path)
	if err != nil {
		return nil, err
	}

	if tagID == metadata.TagViewRootID {
		tags, err := m.idx.TopLevelTags()
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(tags))
		for _, t := range tags {
			names = append(names, t.TagName)
		}
		sort.Strings(names)
		return names, nil
	}

	row, err := m.idx.TagByID(tagID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(row.ChildTags)+len(row.FilesIDs))
	for _, childID := range row.ChildTags {
		child, err := m.idx.TagByID(childID)
		if err != nil {
			return nil, err
		}
		names = append(names, child.TagName)
	}
	for _, fileID := range row.FilesIDs {
		file, err := m.idx.FileByID(fileID)
		if err != nil {
			return nil, err
		}
		names = append(names, file.Filename)
	}
	sort.Strings(names)
	return names, nil
}

// GetAttrTag implements getattr/open/read for the tag view: a
// directory if path resolves to a tag, otherwise a file if its final
// component names a tagged file under the parent tag (spec.md §4.4).
func (m *Manager) GetAttrTag(path string) (isDir bool, storePath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, terr := m.resolveTagPath(path); terr == nil {
		return true, "", nil
	}

	tagID, err := m.resolveTagPath(pathutil.Dir(path))
	if err != nil {
		return false, "", ErrNotFound
	}
	tag, err := m.idx.TagByID(tagID)
	if err != nil {
		return false, "", err
	}
	fileID, found, err := tagFileLookup(m.idx, tag, pathutil.Base(path))
	if err != nil {
		return false, "", err
	}
	if !found {
		return false, "", ErrNotFound
	}
	file, err := m.idx.FileByID(fileID)
	if err != nil {
		return false, "", err
	}
	return false, m.store.Path(file.Hash), nil
}

// MkdirTag implements the tag view's mkdir: creates a tag. The parent
// is resolved from path's prefix (root if path has a single
// component). Tag names are globally unique, so collision is checked
// against the flat namespace regardless of nesting depth.
func (m *Manager) MkdirTag(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := pathutil.Base(path)
	if name == "" {
		return ErrInvalid
	}
	if _, err := m.idx.TopLevelTagByName(name); err == nil {
		return ErrExists
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}

	parentID, err := m.resolveTagPath(pathutil.Dir(path))
	if err != nil {
		return err
	}

	id := m.idx.NextTagID()
	if err := m.idx.InsertTag(id, name); err != nil {
		return err
	}
	if parentID == metadata.TagViewRootID {
		return nil
	}
	parent, err := m.idx.TagByID(parentID)
	if err != nil {
		return err
	}
	if err := m.idx.SetChildTags(parentID, pathutil.AppendID(parent.ChildTags, id)); err != nil {
		return err
	}
	return m.idx.SetParentTags(id, []int64{parentID})
}

// RmdirTag implements the tag view's rmdir: deletes a tag iff it has
// no tagged files and no child tags, and unlinks it from every parent.
func (m *Manager) RmdirTag(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tagID, err := m.resolveTagPath(path)
	if err != nil {
		return err
	}
	if tagID == metadata.TagViewRootID {
		return ErrInvalid
	}
	tag, err := m.idx.TagByID(tagID)
	if err != nil {
		return err
	}
	if len(tag.FilesIDs) > 0 || len(tag.ChildTags) > 0 {
		return ErrNotEmpty
	}

	for _, parentID := range tag.ParentTags {
		parent, err := m.idx.TagByID(parentID)
		if err != nil {
			return err
		}
		if err := m.idx.SetChildTags(parentID, pathutil.RemoveID(parent.ChildTags, tagID)); err != nil {
			return err
		}
	}
	return m.idx.DeleteTag(tagID)
}

// UntagFile implements unlink in the tag view: removes the file's ID
// from the parent tag's files_ids without destroying the file.
func (m *Manager) UntagFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tagID, err := m.resolveTagPath(pathutil.Dir(path))
	if err != nil {
		return err
	}
	tag, err := m.idx.TagByID(tagID)
	if err != nil {
		return err
	}
	fileID, found, err := tagFileLookup(m.idx, tag, pathutil.Base(path))
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return m.idx.SetFilesIDs(tagID, pathutil.RemoveID(tag.FilesIDs, fileID))
}

// Untag implements QH_UNTAG: removes the file named by a folder-view
// path from the named tag's files_ids, without touching the file
// record itself.
func (m *Manager) Untag(path, tagName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, err := m.idx.TopLevelTagByName(tagName)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

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

	return m.idx.SetFilesIDs(tag.TagID, pathutil.RemoveID(tag.FilesIDs, file.FileID))
}

// CreateTag implements QH_CREATE_TAG: creates a top-level tag by name.
func (m *Manager) CreateTag(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.idx.TopLevelTagByName(name); err == nil {
		return ErrExists
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}
	return m.idx.InsertTag(m.idx.NextTagID(), name)
}

// DeleteTag implements QH_DELETE_TAG: deletes a tag by name, subject
// to the same empty-container rule as RmdirTag.
func (m *Manager) DeleteTag(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, err := m.idx.TopLevelTagByName(name)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if len(tag.FilesIDs) > 0 || len(tag.ChildTags) > 0 {
		return ErrNotEmpty
	}
	for _, parentID := range tag.ParentTags {
		parent, err := m.idx.TagByID(parentID)
		if err != nil {
			return err
		}
		if err := m.idx.SetChildTags(parentID, pathutil.RemoveID(parent.ChildTags, tag.TagID)); err != nil {
			return err
		}
	}
	return m.idx.DeleteTag(tag.TagID)
}

// Nest implements QH_NEST: adds the edge child -> parent in the tag
// DAG, refusing root endpoints, duplicate edges, and cycles (spec.md
// §4.4).
func (m *Manager) Nest(childName, parentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, err := m.idx.TopLevelTagByName(childName)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	parent, err := m.idx.TopLevelTagByName(parentName)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	if child.TagID == metadata.TagViewRootID || parent.TagID == metadata.TagViewRootID {
		return ErrInvalid
	}
	if child.TagID == parent.TagID || pathutil.ContainsID(parent.ChildTags, child.TagID) {
		return ErrExists
	}

	ancestors, err := m.ancestorsOfLocked(parent.TagID)
	if err != nil {
		return err
	}
	if ancestors[child.TagID] {
		return ErrCycle
	}

	if err := m.idx.SetChildTags(parent.TagID, pathutil.AppendID(parent.ChildTags, child.TagID)); err != nil {
		return err
	}
	return m.idx.SetParentTags(child.TagID, pathutil.AppendID(child.ParentTags, parent.TagID))
}

// Unnest implements QH_UNNEST: removes an existing child -> parent edge.
func (m *Manager) Unnest(childName, parentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, err := m.idx.TopLevelTagByName(childName)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	parent, err := m.idx.TopLevelTagByName(parentName)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if !pathutil.ContainsID(parent.ChildTags, child.TagID) {
		return ErrNotFound
	}

	if err := m.idx.SetChildTags(parent.TagID, pathutil.RemoveID(parent.ChildTags, child.TagID)); err != nil {
		return err
	}
	return m.idx.SetParentTags(child.TagID, pathutil.RemoveID(child.ParentTags, parent.TagID))
}

// tagsOfFileLocked returns the IDs of every tag whose files_ids
// contains fileID.
func (m *Manager) tagsOfFileLocked(fileID int64) ([]int64, error) {
	tags, err := m.idx.TopLevelTags()
	if err != nil {
		return nil, err
	}
	var owning []int64
	for _, t := range tags {
		if pathutil.ContainsID(t.FilesIDs, fileID) {
			owning = append(owning, t.TagID)
		}
	}
	return owning, nil
}

// GetTags implements QH_GET_TAGS: the names of every tag containing
// the file named by the given folder-view path.
func (m *Manager) GetTags(path string) ([]string, error) {
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

	tagIDs, err := m.tagsOfFileLocked(file.FileID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		t, err := m.idx.TagByID(id)
		if err != nil {
			return nil, err
		}
		names = append(names, t.TagName)
	}
	sort.Strings(names)
	return names, nil
}

// getOrCreateTopLevelTagLocked returns the ID of the named tag,
// creating it at the top level if it does not already exist (spec.md
// §4.4: "missing tags are created on demand at the top level").
func (m *Manager) getOrCreateTopLevelTagLocked(name string) (int64, error) {
	row, err := m.idx.TopLevelTagByName(name)
	if err == nil {
		return row.TagID, nil
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		return 0, err
	}
	id := m.idx.NextTagID()
	if err := m.idx.InsertTag(id, name); err != nil {
		return 0, err
	}
	return id, nil
}

// tagSingleFileLocked tags one file, reporting ErrExists if another
// file already holds that basename under the tag (without undoing
// tags already applied in the same batch).
func (m *Manager) tagSingleFileLocked(tagID int64, file metadata.FileRow) error {
	tag, err := m.idx.TagByID(tagID)
	if err != nil {
		return err
	}
	if pathutil.ContainsID(tag.FilesIDs, file.FileID) {
		return nil
	}
	for _, fid := range tag.FilesIDs {
		other, err := m.idx.FileByID(fid)
		if err != nil {
			return err
		}
		if other.Filename == file.Filename {
			return ErrExists
		}
	}
	return m.idx.SetFilesIDs(tagID, pathutil.AppendID(tag.FilesIDs, file.FileID))
}

// TagFile implements QH_TAG: resolves path in the folder view. If it
// names a file, tags that file; if it names a folder, tags every
// direct child file (non-recursive). Collisions are reported per the
// offending file but do not abort the rest of the batch (spec.md
// §4.4, §7).
func (m *Manager) TagFile(path, tagName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tagID, err := m.getOrCreateTopLevelTagLocked(tagName)
	if err != nil {
		return err
	}

	parentID, err := m.resolveFolder(pathutil.Dir(path))
	if err != nil {
		return err
	}
	base := pathutil.Base(path)

	if folder, err := m.idx.FolderByNameInParent(base, parentID); err == nil {
		files, err := m.idx.FilesInParent(folder.TagID)
		if err != nil {
			return err
		}
		var worst error
		for _, f := range files {
			if terr := m.tagSingleFileLocked(tagID, f); terr != nil {
				worst = terr
			}
		}
		return worst
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}

	file, err := m.idx.FileByNameInParent(base, parentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return m.tagSingleFileLocked(tagID, file)
}

// Search implements QH_SEARCH: strict is an all-of intersection,
// non-strict is an any-of union; an unknown tag short-circuits the
// whole query to empty (spec.md §4.4).
func (m *Manager) Search(tagNames []string, strict bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(tagNames) == 0 {
		return nil, nil
	}

	sets := make([]map[int64]bool, 0, len(tagNames))
	for _, name := range tagNames {
		row, err := m.idx.TopLevelTagByName(name)
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
		set := make(map[int64]bool, len(row.FilesIDs))
		for _, id := range row.FilesIDs {
			set[id] = true
		}
		sets = append(sets, set)
	}

	var result map[int64]bool
	if strict {
		result = sets[0]
		for _, s := range sets[1:] {
			merged := make(map[int64]bool)
			for id := range result {
				if s[id] {
					merged[id] = true
				}
			}
			result = merged
		}
	} else {
		result = make(map[int64]bool)
		for _, s := range sets {
			for id := range s {
				result[id] = true
			}
		}
	}

	names := make([]string, 0, len(result))
	for id := range result {
		file, err := m.idx.FileByID(id)
		if err != nil {
			return nil, err
		}
		names = append(names, file.Filename)
	}
	sort.Strings(names)
	return names, nil
}

// RenameTag implements the tag view's rename: either retagging a file
// between two tags (same basename) or moving/renaming a tag itself
// (spec.md §4.4).
func (m *Manager) RenameTag(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldDir, oldBase := pathutil.Dir(oldPath), pathutil.Base(oldPath)
	newDir, newBase := pathutil.Dir(newPath), pathutil.Base(newPath)

	if oldParentID, err := m.resolveTagPath(oldDir); err == nil {
		oldParent, err := m.idx.TagByID(oldParentID)
		if err != nil {
			return err
		}
		fileID, found, err := tagFileLookup(m.idx, oldParent, oldBase)
		if err != nil {
			return err
		}
		if found {
			return m.retagFileLocked(oldParentID, oldParent, fileID, oldBase, newDir, newBase)
		}
	}

	return m.moveTagLocked(oldPath, oldDir, newDir, newBase)
}

func (m *Manager) retagFileLocked(oldParentID int64, oldParent metadata.TagRow, fileID int64, oldBase, newDir, newBase string) error {
	if oldBase != newBase {
		return ErrInvalid
	}
	newParentID, err := m.resolveTagPath(newDir)
	if err != nil {
		return err
	}
	newParent, err := m.idx.TagByID(newParentID)
	if err != nil {
		return err
	}
	if _, found, err := tagFileLookup(m.idx, newParent, newBase); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	if err := m.idx.SetFilesIDs(oldParentID, pathutil.RemoveID(oldParent.FilesIDs, fileID)); err != nil {
		return err
	}
	return m.idx.SetFilesIDs(newParentID, pathutil.AppendID(newParent.FilesIDs, fileID))
}

func (m *Manager) moveTagLocked(oldPath, oldDir, newDir, newBase string) error {
	tagID, err := m.resolveTagPath(oldPath)
	if err != nil {
		return ErrNotFound
	}
	tag, err := m.idx.TagByID(tagID)
	if err != nil {
		return err
	}

	renaming := newBase != tag.TagName
	if renaming {
		if _, err := m.idx.TopLevelTagByName(newBase); err == nil {
			return ErrExists
		} else if !errors.Is(err, metadata.ErrNotFound) {
			return err
		}
	}

	oldParentID, err := m.resolveTagPath(oldDir)
	if err != nil {
		return err
	}
	newParentID, err := m.resolveTagPath(newDir)
	if err != nil {
		return err
	}

	if newParentID != metadata.TagViewRootID {
		ancestors, err := m.ancestorsOfLocked(newParentID)
		if err != nil {
			return err
		}
		if ancestors[tagID] {
			return ErrCycle
		}
	}

	if oldParentID != metadata.TagViewRootID {
		oldParent, err := m.idx.TagByID(oldParentID)
		if err != nil {
			return err
		}
		if err := m.idx.SetChildTags(oldParentID, pathutil.RemoveID(oldParent.ChildTags, tagID)); err != nil {
			return err
		}
		tag.ParentTags = pathutil.RemoveID(tag.ParentTags, oldParentID)
		if err := m.idx.SetParentTags(tagID, tag.ParentTags); err != nil {
			return err
		}
	}
	if newParentID != metadata.TagViewRootID {
		newParent, err := m.idx.TagByID(newParentID)
		if err != nil {
			return err
		}
		if err := m.idx.SetChildTags(newParentID, pathutil.AppendID(newParent.ChildTags, tagID)); err != nil {
			return err
		}
		tag.ParentTags = pathutil.AppendID(tag.ParentTags, newParentID)
		if err := m.idx.SetParentTags(tagID, tag.ParentTags); err != nil {
			return err
		}
	}

	if renaming {
		return m.idx.RenameTag(tagID, newBase)
	}
	return nil
}
