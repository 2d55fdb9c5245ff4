// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics carries the daemon's observability surface
// (SPEC_FULL.md §6 expansion): dispatcher request counts by verb and
// by error kind, plus a histogram of dispatch latency, registered on
// a private prometheus.Registry and served over /metrics on an
// optional debug HTTP listener. It is ambient: carried regardless of
// spec.md's filesystem-feature Non-goals, which scope out xattrs,
// hard links, and the like, not daemon observability.
package metrics
