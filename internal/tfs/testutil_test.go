// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"os"
	"testing"

	"github.com/santhosh-r/TaggableFS/internal/hashstore"
	"github.com/santhosh-r/TaggableFS/internal/metadata"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := hashstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := metadata.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return New(idx, store)
}

// writeFile drives the copy-on-first-write shadow protocol end to end
// for path, as the FUSE adapter would: GetPathForWrite, write the
// bytes, Update.
func writeFile(t *testing.T, m *Manager, path string, data []byte) {
	t.Helper()
	shadow, err := m.GetPathForWrite(path)
	if err != nil {
		t.Fatalf("GetPathForWrite(%q): %v", path, err)
	}
	if err := os.WriteFile(shadow, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Update(path); err != nil {
		t.Fatalf("Update(%q): %v", path, err)
	}
}

func readFile(t *testing.T, m *Manager, path string) []byte {
	t.Helper()
	storePath, err := m.GetPath(path)
	if err != nil {
		t.Fatalf("GetPath(%q): %v", path, err)
	}
	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
