// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import "errors"

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("metadata: not found")
