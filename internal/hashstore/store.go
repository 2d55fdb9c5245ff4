// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package hashstore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readChunkSize is the streaming chunk size used while hashing a file.
// Matches spec.md §4.1: "reads an external file, streaming in 4 KiB
// chunks."
const readChunkSize = 4096

// EmptyDigest is the well-known MD5 digest of the empty string. It is
// a sentinel: the store never materializes a blob under this name
// (every zero-byte file would otherwise collide on the same on-disk
// object, which is harmless for content but wrong for the copy-on-
// first-write rename protocol in package tfs; see spec.md §4.3 and
// §8 "Writing zero bytes must not orphan the original blob").
const EmptyDigest = "D41D8CD98F00B204E9800998ECF8427E"

// Store manages a flat directory of content-addressed blobs, named by
// the uppercase hex MD5 digest of their contents. Store itself holds
// no metadata about which files reference which blob; reference
// counting lives in the metadata index (package metadata), which is
// the only thing that knows how many files table rows point at a
// given hash.
//
// Store is safe for concurrent reads. Concurrent writers racing on the
// same digest are safe too, because materialization is an atomic
// rename and the content (hence the final bytes) is identical by
// construction. The dispatcher (package dispatch) serializes all
// mutating requests regardless, so this matters only for defense in
// depth.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir. The directory is created if
// it does not exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store directory %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the canonical on-disk path for a digest.
func (s *Store) Path(digest string) string {
	return filepath.Join(s.root, digest)
}

// TempPath returns the path for a named temporary/shadow file within
// the store root (e.g. "<digest>.WRITE", "<digest>.TRUNCATE",
// "TEMP000000042"). The caller constructs the name. Store just joins
// it onto the root so every on-disk path in the daemon goes through
// one place.
func (s *Store) TempPath(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether a blob for digest is present on disk.
func (s *Store) Exists(digest string) bool {
	_, err := os.Stat(s.Path(digest))
	return err == nil
}

// Unlink removes the blob for digest. Missing blobs are not an error:
// the caller (package tfs) only calls Unlink after determining via
// the metadata index that no row references the digest anymore, but
// tolerating a missing file keeps this safe to call defensively too.
func (s *Store) Unlink(digest string) error {
	if err := os.Remove(s.Path(digest)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing object %s: %w", digest, err)
	}
	return nil
}

// CreateEmpty creates an empty file at the given store-relative name
// (e.g. the "TEMP<seq>" placeholder created by mknod). Fails if the
// file already exists.
func (s *Store) CreateEmpty(name string) error {
	f, err := os.OpenFile(s.TempPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating placeholder object %s: %w", name, err)
	}
	return f.Close()
}

// Materialize atomically renames the file at tempPath (expected to be
// store-relative, typically produced by TempPath) to the canonical
// path for digest. If a blob already exists for digest, the temp file
// is discarded instead: the existing blob is identical by
// construction (same digest, content-addressed).
func (s *Store) Materialize(tempPath, digest string) error {
	finalPath := s.Path(digest)
	if _, err := os.Stat(finalPath); err == nil {
		return os.Remove(tempPath)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("renaming %s to object %s: %w", tempPath, digest, err)
	}
	return nil
}

// Digest computes the uppercase hex MD5 digest of the blob currently
// stored under path (an absolute or store-relative path, as produced
// by Path/TempPath), streaming the read in fixed-size chunks per
// spec.md §4.1.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()
	return DigestReader(f)
}

// DigestReader computes the uppercase hex MD5 digest of everything
// read from r, streaming in fixed-size chunks.
func DigestReader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading content to hash: %w", err)
		}
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// CopyFile copies srcPath to dstPath in-process. Used by the truncate
// copy-on-write path (spec.md §4.3) in place of the original
// implementation's shell-out to cp (spec.md §9 design note).
func CopyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s to copy: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating copy destination %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying %s to %s: %w", srcPath, dstPath, err)
	}
	return nil
}
