// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package hashstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDigestReaderMatchesKnownMD5(t *testing.T) {
	digest, err := DigestReader(strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	const want = "5D41402ABC4B2A76B9719D911017C592"
	if digest != want {
		t.Errorf("digest = %q, want %q", digest, want)
	}
}

func TestEmptyDigestSentinel(t *testing.T) {
	digest, err := DigestReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if digest != EmptyDigest {
		t.Errorf("digest of empty content = %q, want sentinel %q", digest, EmptyDigest)
	}
}

func TestMaterializeAndExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	digest, err := DigestReader(strings.NewReader("content"))
	if err != nil {
		t.Fatal(err)
	}

	tempPath := store.TempPath("scratch.WRITE")
	if err := os.WriteFile(tempPath, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if store.Exists(digest) {
		t.Fatal("blob should not exist before materialization")
	}
	if err := store.Materialize(tempPath, digest); err != nil {
		t.Fatal(err)
	}
	if !store.Exists(digest) {
		t.Fatal("blob should exist after materialization")
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("temp file should have been renamed away, stat err = %v", err)
	}
}

func TestMaterializeDedupesIdenticalContent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	digest, err := DigestReader(strings.NewReader("same"))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		tempPath := store.TempPath("scratch" + string(rune('0'+i)) + ".WRITE")
		if err := os.WriteFile(tempPath, []byte("same"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := store.Materialize(tempPath, digest); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one blob on disk after dedup, got %d", len(entries))
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q, want %q", data, "payload")
	}
}

