// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package tfs

import (
	"os"
	"testing"
)

// TestScenarioBasicFolderRoundTrip covers spec.md §8 scenario 1.
func TestScenarioBasicFolderRoundTrip(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))

	names, err := m.ListDir("/a")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "x" {
		t.Fatalf("ListDir(/a) = %v, want [x]", names)
	}

	if got := string(readFile(t, m, "/a/x")); got != "hello" {
		t.Errorf("read /a/x = %q, want hello", got)
	}

	files, tags, err := m.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if files != 1 || tags != 0 {
		t.Errorf("Stats = (%d, %d), want (1, 0)", files, tags)
	}
}

// TestScenarioTagAndMount covers spec.md §8 scenario 2.
func TestScenarioTagAndMount(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))

	if err := m.TagFile("/a/x", "red"); err != nil {
		t.Fatal(err)
	}

	top, err := m.ListDirTag("/")
	if err != nil {
		t.Fatal(err)
	}
	if !containsName(top, "red") {
		t.Fatalf("ListDirTag(/) = %v, want to contain red", top)
	}

	under, err := m.ListDirTag("/red")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 1 || under[0] != "x" {
		t.Fatalf("ListDirTag(/red) = %v, want [x]", under)
	}

	_, storePath, err := m.GetAttrTag("/red/x")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("read /red/x = %q, want hello", data)
	}
}

// TestScenarioNestAndCycle covers spec.md §8 scenario 3.
func TestScenarioNestAndCycle(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))
	if err := m.TagFile("/a/x", "red"); err != nil {
		t.Fatal(err)
	}
	if err := m.MkdirTag("/color"); err != nil {
		t.Fatal(err)
	}

	if err := m.Nest("red", "color"); err != nil {
		t.Fatal(err)
	}
	if err := m.Nest("color", "red"); err != ErrCycle {
		t.Fatalf("Nest(color, red) = %v, want ErrCycle", err)
	}

	under, err := m.ListDirTag("/color")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 1 || under[0] != "red" {
		t.Fatalf("ListDirTag(/color) = %v, want [red]", under)
	}

	nested, err := m.ListDirTag("/color/red")
	if err != nil {
		t.Fatal(err)
	}
	if len(nested) != 1 || nested[0] != "x" {
		t.Fatalf("ListDirTag(/color/red) = %v, want [x]", nested)
	}
}

// TestScenarioDedupAndRefcountedUnlink covers spec.md §8 scenario 4.
func TestScenarioDedupAndRefcountedUnlink(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))
	if _, err := m.Mknod("/a/y"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/y", []byte("hello"))

	xHash, err := m.GetPath("/a/x")
	if err != nil {
		t.Fatal(err)
	}
	yHash, err := m.GetPath("/a/y")
	if err != nil {
		t.Fatal(err)
	}
	if xHash != yHash {
		t.Fatalf("identical content should share one blob: %q != %q", xHash, yHash)
	}

	if _, err := m.Unlink("/a/x"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(yHash); err != nil {
		t.Fatalf("blob should persist while y references it: %v", err)
	}

	if _, err := m.Unlink("/a/y"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(yHash); !os.IsNotExist(err) {
		t.Errorf("blob should be removed once the last reference is gone, stat err = %v", err)
	}
}

// TestScenarioSearch covers spec.md §8 scenario 5.
func TestScenarioSearch(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))
	if err := m.TagFile("/a/x", "red"); err != nil {
		t.Fatal(err)
	}

	got, err := m.Search([]string{"red"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("Search(red) = %v, want [x]", got)
	}

	got, err = m.Search([]string{"red", "blue"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("Search(red, blue, strict) with unknown blue = %v, want []", got)
	}
}

// TestScenarioRenameTaggedFile covers spec.md §8 scenario 6.
func TestScenarioRenameTaggedFile(t *testing.T) {
	m := newTestManager(t)

	if err := m.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Mknod("/a/x"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, m, "/a/x", []byte("hello"))
	if err := m.TagFile("/a/x", "red"); err != nil {
		t.Fatal(err)
	}

	if err := m.Rename("/a/x", "/a/z"); err != nil {
		t.Fatal(err)
	}

	under, err := m.ListDirTag("/red")
	if err != nil {
		t.Fatal(err)
	}
	if len(under) != 1 || under[0] != "z" {
		t.Fatalf("ListDirTag(/red) after rename = %v, want [z]", under)
	}
}
