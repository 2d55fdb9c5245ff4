// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/santhosh-r/TaggableFS/internal/pathutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	file_id       INTEGER PRIMARY KEY,
	filename      TEXT NOT NULL,
	hash          TEXT NOT NULL,
	parent_folder INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	tag_id        INTEGER PRIMARY KEY,
	tag_name      TEXT NOT NULL,
	parent_folder INTEGER NOT NULL,
	parent_tags   TEXT NOT NULL DEFAULT '',
	child_tags    TEXT NOT NULL DEFAULT '',
	files_ids     TEXT NOT NULL DEFAULT ''
);
`

// Index is the in-memory relational metadata store: the files and
// tags tables, accessed exclusively through the prepared statements
// held in stmts. The dispatcher goroutine is the index's only caller
// in the daemon, but mu is kept so the package is safe to use from
// tests (or any other single caller) without relying on that.
type Index struct {
	mu         sync.Mutex
	db         *sql.DB
	stmts      statements
	nextFileID int64
	nextTagID  int64
}

type statements struct {
	insertFile          *sql.Stmt
	fileByID            *sql.Stmt
	fileByNameInParent  *sql.Stmt
	filesInParent       *sql.Stmt
	countFilesByHash    *sql.Stmt
	renameFile          *sql.Stmt
	updateFileHash      *sql.Stmt
	deleteFile          *sql.Stmt
	countFiles          *sql.Stmt

	insertTag           *sql.Stmt
	tagByID             *sql.Stmt
	folderByNameInParent *sql.Stmt
	topLevelTagByName  *sql.Stmt
	foldersInParent     *sql.Stmt
	topLevelTags        *sql.Stmt
	renameTag           *sql.Stmt
	renameFolder        *sql.Stmt
	setParentTags       *sql.Stmt
	setChildTags        *sql.Stmt
	setFilesIDs         *sql.Stmt
	deleteTag           *sql.Stmt
	countTags           *sql.Stmt
}

// Open creates a fresh in-memory index with the schema applied, then
// loads snapshotPath if it exists or bootstraps the two root rows if
// it does not. snapshotPath may be empty, in which case the index
// always starts fresh (used by tests).
func Open(snapshotPath string) (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("metadata: open: %w", err)
	}
	// A single in-memory SQLite connection is required: separate
	// connections would each see their own empty database. The
	// dispatcher already serializes every call into the index, so
	// this costs nothing in practice.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: create schema: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.prepare(); err != nil {
		db.Close()
		return nil, err
	}

	if snapshotPath == "" {
		if err := idx.bootstrapRoots(); err != nil {
			db.Close()
			return nil, err
		}
		return idx, nil
	}

	if _, err := os.Stat(snapshotPath); errors.Is(err, os.ErrNotExist) {
		if err := idx.bootstrapRoots(); err != nil {
			db.Close()
			return nil, err
		}
		return idx, nil
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: stat snapshot: %w", err)
	}

	if err := idx.load(snapshotPath); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) prepare() error {
	type binding struct {
		dst   **sql.Stmt
		query string
	}
	bindings := []binding{
		{&idx.stmts.insertFile, `INSERT INTO files (file_id, filename, hash, parent_folder) VALUES (?, ?, ?, ?)`},
		{&idx.stmts.fileByID, `SELECT file_id, filename, hash, parent_folder FROM files WHERE file_id = ?`},
		{&idx.stmts.fileByNameInParent, `SELECT file_id, filename, hash, parent_folder FROM files WHERE filename = ? AND parent_folder = ?`},
		{&idx.stmts.filesInParent, `SELECT file_id, filename, hash, parent_folder FROM files WHERE parent_folder = ? ORDER BY filename`},
		{&idx.stmts.countFilesByHash, `SELECT COUNT(*) FROM files WHERE hash = ?`},
		{&idx.stmts.renameFile, `UPDATE files SET filename = ?, parent_folder = ? WHERE file_id = ?`},
		{&idx.stmts.updateFileHash, `UPDATE files SET hash = ? WHERE file_id = ?`},
		{&idx.stmts.deleteFile, `DELETE FROM files WHERE file_id = ?`},
		{&idx.stmts.countFiles, `SELECT COUNT(*) FROM files`},

		{&idx.stmts.insertTag, `INSERT INTO tags (tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids) VALUES (?, ?, ?, ?, ?, ?)`},
		{&idx.stmts.tagByID, `SELECT tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids FROM tags WHERE tag_id = ?`},
		{&idx.stmts.folderByNameInParent, `SELECT tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids FROM tags WHERE tag_name = ? AND parent_folder = ?`},
		{&idx.stmts.topLevelTagByName, `SELECT tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids FROM tags WHERE tag_name = ? AND parent_folder = 0`},
		{&idx.stmts.foldersInParent, `SELECT tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids FROM tags WHERE parent_folder = ? ORDER BY tag_name`},
		{&idx.stmts.topLevelTags, `SELECT tag_id, tag_name, parent_folder, parent_tags, child_tags, files_ids FROM tags WHERE parent_folder = 0 ORDER BY tag_name`},
		{&idx.stmts.renameTag, `UPDATE tags SET tag_name = ? WHERE tag_id = ?`},
		{&idx.stmts.renameFolder, `UPDATE tags SET tag_name = ?, parent_folder = ? WHERE tag_id = ?`},
		{&idx.stmts.setParentTags, `UPDATE tags SET parent_tags = ? WHERE tag_id = ?`},
		{&idx.stmts.setChildTags, `UPDATE tags SET child_tags = ? WHERE tag_id = ?`},
		{&idx.stmts.setFilesIDs, `UPDATE tags SET files_ids = ? WHERE tag_id = ?`},
		{&idx.stmts.deleteTag, `DELETE FROM tags WHERE tag_id = ?`},
		{&idx.stmts.countTags, `SELECT COUNT(*) FROM tags WHERE parent_folder = 0`},
	}
	for _, b := range bindings {
		stmt, err := idx.db.Prepare(b.query)
		if err != nil {
			return fmt.Errorf("metadata: prepare %q: %w", b.query, err)
		}
		*b.dst = stmt
	}
	return nil
}

func (idx *Index) bootstrapRoots() error {
	if _, err := idx.stmts.insertTag.Exec(TagViewRootID, "", rootParentFolder, "", "", ""); err != nil {
		return fmt.Errorf("metadata: bootstrap tag root: %w", err)
	}
	if _, err := idx.stmts.insertTag.Exec(FolderViewRootID, "", rootParentFolder, "", "", ""); err != nil {
		return fmt.Errorf("metadata: bootstrap folder root: %w", err)
	}
	idx.nextTagID = 2
	idx.nextFileID = 1
	return nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// load fills the freshly created in-memory tables with the contents of the SQLite
// file at path, attaching it as an auxiliary database rather than
// parsing a bespoke format.
func (idx *Index) load(path string) error {
	if _, err := idx.db.Exec(`ATTACH DATABASE ? AS snap`, path); err != nil {
		return fmt.Errorf("metadata: attach snapshot: %w", err)
	}
	defer idx.db.Exec(`DETACH DATABASE snap`)

	if _, err := idx.db.Exec(`INSERT INTO files SELECT * FROM snap.files`); err != nil {
		return fmt.Errorf("metadata: load files: %w", err)
	}
	if _, err := idx.db.Exec(`INSERT INTO tags SELECT * FROM snap.tags`); err != nil {
		return fmt.Errorf("metadata: load tags: %w", err)
	}

	row := idx.db.QueryRow(`SELECT COALESCE(MAX(file_id), 0) FROM files`)
	if err := row.Scan(&idx.nextFileID); err != nil {
		return fmt.Errorf("metadata: scan max file id: %w", err)
	}
	idx.nextFileID++

	row = idx.db.QueryRow(`SELECT COALESCE(MAX(tag_id), 1) FROM tags`)
	if err := row.Scan(&idx.nextTagID); err != nil {
		return fmt.Errorf("metadata: scan max tag id: %w", err)
	}
	idx.nextTagID++
	return nil
}

// Save writes the current in-memory tables to a fresh SQLite file at
// path, replacing any file already there. The daemon treats a failed
// Save as fatal (spec.md §4.5): it must not exit believing state was
// persisted when it was not.
func (idx *Index) Save(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metadata: mkdir snapshot dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("metadata: remove old snapshot: %w", err)
	}

	if _, err := idx.db.Exec(`ATTACH DATABASE ? AS snap`, path); err != nil {
		return fmt.Errorf("metadata: attach snapshot: %w", err)
	}
	defer idx.db.Exec(`DETACH DATABASE snap`)

	if _, err := idx.db.Exec(`CREATE TABLE snap.files AS SELECT * FROM files`); err != nil {
		return fmt.Errorf("metadata: save files: %w", err)
	}
	if _, err := idx.db.Exec(`CREATE TABLE snap.tags AS SELECT * FROM tags`); err != nil {
		return fmt.Errorf("metadata: save tags: %w", err)
	}
	return nil
}

// --- files -----------------------------------------------------------

// NextFileID reserves and returns the next unused file ID.
func (idx *Index) NextFileID() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	id := idx.nextFileID
	idx.nextFileID++
	return id
}

func scanFileRow(row interface{ Scan(...any) error }) (FileRow, error) {
	var f FileRow
	if err := row.Scan(&f.FileID, &f.Filename, &f.Hash, &f.ParentFolder); err != nil {
		return FileRow{}, err
	}
	return f, nil
}

// InsertFile creates a new file row with the given, caller-reserved ID.
func (idx *Index) InsertFile(fileID int64, filename, hash string, parentFolder int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.insertFile.Exec(fileID, filename, hash, parentFolder)
	return err
}

// FileByID looks up a file by ID. Returns ErrNotFound if absent.
func (idx *Index) FileByID(id int64) (FileRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	row, err := scanFileRow(idx.stmts.fileByID.QueryRow(id))
	if errors.Is(err, sql.ErrNoRows) {
		return FileRow{}, ErrNotFound
	}
	return row, err
}

// FileByNameInParent looks up a file by name within a folder. Returns
// ErrNotFound if absent.
func (idx *Index) FileByNameInParent(name string, parentFolder int64) (FileRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	row, err := scanFileRow(idx.stmts.fileByNameInParent.QueryRow(name, parentFolder))
	if errors.Is(err, sql.ErrNoRows) {
		return FileRow{}, ErrNotFound
	}
	return row, err
}

// FilesInParent lists every file directly inside parentFolder.
func (idx *Index) FilesInParent(parentFolder int64) ([]FileRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rows, err := idx.stmts.filesInParent.Query(parentFolder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFilesByHash returns how many file rows reference hash, used to
// decide whether removing a file row should also unlink its blob.
func (idx *Index) CountFilesByHash(hash string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var n int
	err := idx.stmts.countFilesByHash.QueryRow(hash).Scan(&n)
	return n, err
}

// RenameFile moves/renames a file to (name, parentFolder).
func (idx *Index) RenameFile(id int64, name string, parentFolder int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.renameFile.Exec(name, parentFolder, id)
	return err
}

// UpdateFileHash repoints a file row at a new blob, for example after
// a write-release replaces its content (spec.md §4.3).
func (idx *Index) UpdateFileHash(id int64, hash string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.updateFileHash.Exec(hash, id)
	return err
}

// DeleteFile removes a file row.
func (idx *Index) DeleteFile(id int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.deleteFile.Exec(id)
	return err
}

// CountFiles returns the total number of file rows, for QH_STATS.
func (idx *Index) CountFiles() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var n int
	err := idx.stmts.countFiles.QueryRow().Scan(&n)
	return n, err
}

// --- tags / folders ---------------------------------------------------

// NextTagID reserves and returns the next unused tag/folder ID.
func (idx *Index) NextTagID() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	id := idx.nextTagID
	idx.nextTagID++
	return id
}

func scanTagRowFrom(row interface{ Scan(...any) error }) (TagRow, error) {
	var tagID, parentFolder int64
	var tagName, parentTags, childTags, filesIDs string
	if err := row.Scan(&tagID, &tagName, &parentFolder, &parentTags, &childTags, &filesIDs); err != nil {
		return TagRow{}, err
	}
	return scanTagRow(tagID, tagName, parentFolder, parentTags, childTags, filesIDs)
}

// InsertFolder creates a new folder row with the given, caller-reserved ID.
func (idx *Index) InsertFolder(tagID int64, name string, parentFolder int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.insertTag.Exec(tagID, name, parentFolder, "", "", "")
	return err
}

// InsertTag creates a new top-level tag row with the given,
// caller-reserved ID.
func (idx *Index) InsertTag(tagID int64, name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.insertTag.Exec(tagID, name, int64(0), "", "", "")
	return err
}

// TagByID looks up a tag, folder, or root row by ID. Returns
// ErrNotFound if absent.
func (idx *Index) TagByID(id int64) (TagRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	row, err := scanTagRowFrom(idx.stmts.tagByID.QueryRow(id))
	if errors.Is(err, sql.ErrNoRows) {
		return TagRow{}, ErrNotFound
	}
	return row, err
}

// FolderByNameInParent looks up a folder by name within a parent
// folder. parentFolder must be > 0 (never 0 or -1): querying with a
// real folder ID naturally excludes tag and root rows, since only
// folder rows carry a positive parent_folder. Returns ErrNotFound if
// absent.
func (idx *Index) FolderByNameInParent(name string, parentFolder int64) (TagRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	row, err := scanTagRowFrom(idx.stmts.folderByNameInParent.QueryRow(name, parentFolder))
	if errors.Is(err, sql.ErrNoRows) {
		return TagRow{}, ErrNotFound
	}
	return row, err
}

// TopLevelTagByName looks up a tag by name. Returns ErrNotFound if absent.
func (idx *Index) TopLevelTagByName(name string) (TagRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	row, err := scanTagRowFrom(idx.stmts.topLevelTagByName.QueryRow(name))
	if errors.Is(err, sql.ErrNoRows) {
		return TagRow{}, ErrNotFound
	}
	return row, err
}

// FoldersInParent lists every folder directly inside parentFolder.
func (idx *Index) FoldersInParent(parentFolder int64) ([]TagRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.queryTagRows(idx.stmts.foldersInParent, parentFolder)
}

// TopLevelTags lists every tag in the flat tag namespace.
func (idx *Index) TopLevelTags() ([]TagRow, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.queryTagRows(idx.stmts.topLevelTags)
}

func (idx *Index) queryTagRows(stmt *sql.Stmt, args ...any) ([]TagRow, error) {
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TagRow
	for rows.Next() {
		row, err := scanTagRowFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RenameTag renames a tag in place (its parent_folder stays 0).
func (idx *Index) RenameTag(id int64, name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.renameTag.Exec(name, id)
	return err
}

// RenameFolder moves/renames a folder to (name, parentFolder).
func (idx *Index) RenameFolder(id int64, name string, parentFolder int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.renameFolder.Exec(name, parentFolder, id)
	return err
}

// SetParentTags overwrites a tag's parent_tags list.
func (idx *Index) SetParentTags(id int64, ids []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.setParentTags.Exec(pathutil.FormatIDList(ids), id)
	return err
}

// SetChildTags overwrites a tag's child_tags list.
func (idx *Index) SetChildTags(id int64, ids []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.setChildTags.Exec(pathutil.FormatIDList(ids), id)
	return err
}

// SetFilesIDs overwrites a tag's files_ids list.
func (idx *Index) SetFilesIDs(id int64, ids []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.setFilesIDs.Exec(pathutil.FormatIDList(ids), id)
	return err
}

// DeleteTag removes a tag or folder row.
func (idx *Index) DeleteTag(id int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.stmts.deleteTag.Exec(id)
	return err
}

// CountTags returns the number of tags in the flat tag namespace
// (folders and the two roots are not counted), for QH_STATS.
func (idx *Index) CountTags() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var n int
	err := idx.stmts.countTags.QueryRow().Scan(&n)
	return n, err
}
