// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import "github.com/santhosh-r/TaggableFS/internal/pathutil"

// Sentinel tag IDs, fixed by spec.md §3: the tag-namespace root is
// tag_id 0, the folder-namespace root is tag_id 1. Both carry
// parent_folder = -1, distinguishing them from every other row.
const (
	TagViewRootID    int64 = 0
	FolderViewRootID int64 = 1

	rootParentFolder int64 = -1
)

// FileRow is one row of the files table: a leaf that exists in the
// folder view (parent_folder names its containing folder) and is
// addressable from the tag view through the owning tags' files_ids
// lists.
type FileRow struct {
	FileID       int64
	Filename     string
	Hash         string
	ParentFolder int64
}

// TagRow is one row of the tags table. Depending on ParentFolder it
// plays one of three roles (spec.md §3):
//
//   - ParentFolder == -1: one of the two fixed roots (TagID 0 or 1).
//   - ParentFolder == 0:  a tag, living in the flat tag namespace.
//   - ParentFolder  > 0:  a folder, child of the folder with that ID.
type TagRow struct {
	TagID        int64
	TagName      string
	ParentFolder int64
	ParentTags   []int64
	ChildTags    []int64
	FilesIDs     []int64
}

// IsRoot reports whether row is one of the two fixed root rows.
func (row *TagRow) IsRoot() bool {
	return row.ParentFolder == rootParentFolder
}

// IsFolder reports whether row represents a folder.
func (row *TagRow) IsFolder() bool {
	return row.ParentFolder > 0
}

// IsTag reports whether row represents a tag (not a folder, not a root).
func (row *TagRow) IsTag() bool {
	return row.ParentFolder == 0
}

func scanTagRow(tagID int64, tagName string, parentFolder int64, parentTags, childTags, filesIDs string) (TagRow, error) {
	row := TagRow{TagID: tagID, TagName: tagName, ParentFolder: parentFolder}
	var err error
	if row.ParentTags, err = pathutil.ParseIDList(parentTags); err != nil {
		return TagRow{}, err
	}
	if row.ChildTags, err = pathutil.ParseIDList(childTags); err != nil {
		return TagRow{}, err
	}
	if row.FilesIDs, err = pathutil.ParseIDList(filesIDs); err != nil {
		return TagRow{}, err
	}
	return row, nil
}
