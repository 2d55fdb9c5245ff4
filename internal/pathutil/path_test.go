// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package pathutil

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"/", nil},
		{"/a", []string{"a"}},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"/a/b/", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := Split(tc.path)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Split(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestBaseAndDir(t *testing.T) {
	if got := Base("/a/b/c"); got != "c" {
		t.Errorf("Base = %q, want %q", got, "c")
	}
	if got := Base("/"); got != "" {
		t.Errorf("Base(/) = %q, want empty", got)
	}
	if got := Dir("/a/b/c"); got != "/a/b" {
		t.Errorf("Dir = %q, want %q", got, "/a/b")
	}
	if got := Dir("/a"); got != "/" {
		t.Errorf("Dir(/a) = %q, want %q", got, "/")
	}
	if got := Dir("/"); got != "/" {
		t.Errorf("Dir(/) = %q, want %q", got, "/")
	}
}

func TestIDListRoundTrip(t *testing.T) {
	ids := []int64{3, 7, 42}
	serialized := FormatIDList(ids)
	if serialized != "3;7;42" {
		t.Errorf("FormatIDList = %q, want %q", serialized, "3;7;42")
	}
	parsed, err := ParseIDList(serialized)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(parsed, ids) {
		t.Errorf("ParseIDList = %v, want %v", parsed, ids)
	}
}

func TestParseIDListEmpty(t *testing.T) {
	parsed, err := ParseIDList("")
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 0 {
		t.Errorf("ParseIDList(\"\") = %v, want empty", parsed)
	}
}

func TestAppendAndRemoveID(t *testing.T) {
	ids := AppendID(nil, 1)
	ids = AppendID(ids, 2)
	ids = AppendID(ids, 1) // duplicate, no-op
	if !reflect.DeepEqual(ids, []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
	ids = RemoveID(ids, 1)
	if !reflect.DeepEqual(ids, []int64{2}) {
		t.Errorf("ids = %v, want [2]", ids)
	}
}

func TestSemicolonListRoundTrip(t *testing.T) {
	names := []string{"red", "blue"}
	joined := FormatSemicolonList(names)
	if joined != "red;blue" {
		t.Errorf("FormatSemicolonList = %q, want %q", joined, "red;blue")
	}
	parsed := ParseSemicolonList(joined)
	if !reflect.DeepEqual(parsed, names) {
		t.Errorf("ParseSemicolonList = %v, want %v", parsed, names)
	}
	if got := ParseSemicolonList(""); got != nil {
		t.Errorf("ParseSemicolonList(\"\") = %v, want nil", got)
	}
}

func TestSplitArgs(t *testing.T) {
	got := SplitArgs("a,b,c")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgs = %v, want %v", got, want)
	}
	if got := SplitArgs(""); got != nil {
		t.Errorf("SplitArgs(\"\") = %v, want nil", got)
	}
}
