// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata implements the metadata index: the two-table
// relational store (files, tags) described in spec.md §3/§4.2.
//
// The index lives in an in-memory SQLite database
// (modernc.org/sqlite, pure Go) accessed exclusively through a fixed,
// pre-prepared set of parameterized statements: spec.md §4.2 is
// explicit that "no ad-hoc query construction is permitted," which
// original_source/src/TFSManager.cpp satisfies with a real
// sqlite3_stmt table built once in prepareStatements(); Open does the
// equivalent with database/sql prepared statements.
//
// The database is held entirely in memory for the daemon's lifetime
// and snapshotted to a single SQLite file on disk at shutdown/init
// (Index.Save, and Open loading an existing snapshot), via ATTACH DATABASE rather than a bespoke
// serialization format. Writes are not durable until Save succeeds.
package metadata
