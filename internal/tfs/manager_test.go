// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"os"
	"testing"
)

func TestMkdirRmdirRoundTrip(t *testing.T) {
	m := newTestManager(t)
	before, err := m.ListDir("/")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Rmdir("/a"); err != nil {
		t.Fatal(err)
	}

	after, err := m.ListDir("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("ListDir(/) after mkdir;rmdir = %v, want %v", after, before)
	}
}

func TestMkdirCollisionWithFile(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Mkdir("/a"); err != ErrExists {
		t.Fatalf("Mkdir over existing file = %v, want ErrExists", err)
	}
}

func TestRmdirNotEmpty(t *testing.T) {
	m := newTestManager(t)
	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	if err := m.Rmdir("/a"); err != ErrNotEmpty {
		t.Fatalf("Rmdir non-empty = %v, want ErrNotEmpty", err)
	}
}

func TestTagUntagRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("data"))

	if err := m.TagFile("/x", "red"); err != nil {
		t.Fatal(err)
	}
	tags, err := m.GetTags("/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != "red" {
		t.Fatalf("GetTags = %v, want [red]", tags)
	}

	if err := m.UntagFile("/red/x"); err != nil {
		t.Fatal(err)
	}
	tags, err = m.GetTags("/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Fatalf("GetTags after untag = %v, want []", tags)
	}
}

func TestNestUnnestRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if err := m.MkdirTag("/animal"); err != nil {
		t.Fatal(err)
	}
	if err := m.MkdirTag("/dog"); err != nil {
		t.Fatal(err)
	}

	if err := m.Nest("dog", "animal"); err != nil {
		t.Fatal(err)
	}
	under, err := m.ListDirTag("/animal")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 1 || under[0] != "dog" {
		t.Fatalf("ListDirTag(/animal) = %v, want [dog]", under)
	}

	if err := m.Unnest("dog", "animal"); err != nil {
		t.Fatal(err)
	}
	under, err = m.ListDirTag("/animal")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 0 {
		t.Fatalf("ListDirTag(/animal) after unnest = %v, want []", under)
	}
}

func TestCreateDeleteTagRoundTrip(t *testing.T) {
	m := newTestManager(t)
	before, err := m.ListDirTag("/")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.MkdirTag("/ephemeral"); err != nil {
		t.Fatal(err)
	}
	if err := m.RmdirTag("/ephemeral"); err != nil {
		t.Fatal(err)
	}

	after, err := m.ListDirTag("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("ListDirTag(/) after create;delete = %v, want %v", after, before)
	}
}

func TestWriteIdempotentHash(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("same content"))
	first, err := m.GetPath("/x")
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, m, "/x", []byte("same content"))
	second, err := m.GetPath("/x")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("repeated identical write changed hash: %q != %q", first, second)
	}
}

func TestEmptyWriteDoesNotOrphanBlob(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("content"))
	original, err := m.GetPath("/x")
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, m, "/x", []byte(""))

	if _, err := os.Stat(original); !os.IsNotExist(err) {
		t.Errorf("previous blob should be released on truncation to empty, stat err = %v", err)
	}
}

func TestRenameOverwriteTransfersTagBindings(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("x-data"))
	if err := m.TagFile("/x", "keep"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/y"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/y", []byte("y-data"))

	if err := m.Rename("/y", "/x"); err != nil {
		t.Fatal(err)
	}

	under, err := m.ListDirTag("/keep")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 1 || under[0] != "x" {
		t.Fatalf("ListDirTag(/keep) after overwrite-rename = %v, want [x]", under)
	}
	if got := string(readFile(t, m, "/x")); got != "y-data" {
		t.Errorf("content at /x after overwrite-rename = %q, want y-data", got)
	}
}

func TestTruncateSharedBlobDoesNotAffectOtherReferent(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("shared"))
	if _, err := m.Mknod("/y"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/y", []byte("shared"))

	if err := m.Truncate("/x", 3); err != nil {
		t.Fatal(err)
	}

	if got := string(readFile(t, m, "/x")); got != "sha" {
		t.Errorf("content at /x after truncate = %q, want sha", got)
	}
	if got := string(readFile(t, m, "/y")); got != "shared" {
		t.Errorf("content at /y after truncating x = %q, want unaffected shared", got)
	}
}

func TestCreateTagDeleteTagByName(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateTag("standalone"); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateTag("standalone"); err != ErrExists {
		t.Fatalf("CreateTag duplicate = %v, want ErrExists", err)
	}
	if err := m.DeleteTag("standalone"); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteTag("standalone"); err != ErrNotFound {
		t.Fatalf("DeleteTag missing = %v, want ErrNotFound", err)
	}
}

func TestUntagByName(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Mknod("/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/x", []byte("d"))
	if err := m.TagFile("/x", "red"); err != nil {
		t.Fatal(err)
	}
	if err := m.Untag("/x", "red"); err != nil {
		t.Fatal(err)
	}
	tags, err := m.GetTags("/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Fatalf("GetTags after Untag = %v, want []", tags)
	}
}

func TestRenameFileCollisionAcrossTaggedBasenames(t *testing.T) {
	m := newTestManager(t)
	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Mkdir("/b"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("1"))
	if _, err := m.Mknod("/b/z"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/b/z", []byte("2"))
	if err := m.TagFile("/a/x", "shared"); err != nil {
		t.Fatal(err)
	}
	if err := m.TagFile("/b/z", "shared"); err != nil {
		t.Fatal(err)
	}

	// Renaming a/x to a/z would collide with b/z's basename under
	// the tag "shared" that both files carry.
	if err := m.Rename("/a/x", "/a/z"); err != ErrExists {
		t.Fatalf("Rename causing tagged-basename collision = %v, want ErrExists", err)
	}
}
