// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"os"
	"path/filepath"

	"github.com/santhosh-r/TaggableFS/internal/hashstore"
)

// isEmptyDigestPath reports whether storePath names the object store's
// empty-digest sentinel, which is never materialized on disk (package
// tfs discards the write-shadow instead of renaming it in on a
// zero-byte write, so no real file exists at this path).
func isEmptyDigestPath(storePath string) bool {
	return filepath.Base(storePath) == hashstore.EmptyDigest
}

// statSize returns the apparent size of a file backing storePath. The
// empty-digest sentinel and any path that has gone missing between the
// daemon resolving it and this stat both report size zero rather than
// failing the call: a narrow race the daemon cannot close without a
// lock it does not otherwise need (spec.md §5: no locks in the core).
func statSize(storePath string) (int64, error) {
	if isEmptyDigestPath(storePath) {
		return 0, nil
	}
	info, err := os.Stat(storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}
