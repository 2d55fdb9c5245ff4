// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package pathutil

import (
	"strconv"
	"strings"
)

// Split breaks a POSIX-style path (always leading with "/", per
// spec.md §6) into its non-empty components. Split("/") returns nil.
func Split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Base returns the final component of path, or "" for the root.
func Base(path string) string {
	parts := Split(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Dir returns the path with its final component removed. Dir("/a/b")
// is "/a"; Dir("/a") and Dir("/") are both "/".
func Dir(path string) string {
	parts := Split(path)
	if len(parts) <= 1 {
		return "/"
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/")
}

// idListSeparator is the delimiter for serialized ID lists
// (parent_tags, child_tags, files_ids) per spec.md §6: "';' to
// separate serialized ID lists."
const idListSeparator = ";"

// ParseIDList deserializes a ";"-joined list of decimal int64 IDs.
// An empty string parses to a nil (empty) slice.
func ParseIDList(serialized string) ([]int64, error) {
	if serialized == "" {
		return nil, nil
	}
	parts := strings.Split(serialized, idListSeparator)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatIDList serializes a list of IDs to a ";"-joined string.
func FormatIDList(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, idListSeparator)
}

// ContainsID reports whether id appears in ids.
func ContainsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// AppendID returns ids with id appended, unless it is already present.
func AppendID(ids []int64, id int64) []int64 {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids with id removed (all occurrences), preserving
// order of the remaining elements.
func RemoveID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// SplitArgs splits a request's ARGS portion on "," per spec.md §6:
// "',' to separate positional arguments (never within an argument)."
func SplitArgs(args string) []string {
	if args == "" {
		return nil
	}
	return strings.Split(args, ",")
}

// ParseSemicolonList splits a ";"-joined list of tag names, as used
// by QH_SEARCH's `<tag;tag;...>` argument.
func ParseSemicolonList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, idListSeparator)
}

// FormatSemicolonList joins tag names with ";", as used by
// QH_GET_TAGS's reply payload.
func FormatSemicolonList(names []string) string {
	return strings.Join(names, idListSeparator)
}
