// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashstore implements the content-addressed object store: a
// flat directory of blobs named by the uppercase hex MD5 digest of
// their contents. It knows nothing about names, folders, or tags;
// those live in package metadata and package tfs.
package hashstore
