// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathutil splits POSIX-style paths into components, extracts
// basenames, and (de)serializes the ";"-joined ID lists used by the
// metadata index. It is pure and holds no state (spec.md §2.1).
package pathutil
