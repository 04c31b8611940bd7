// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dxerr collects the sentinel error values surfaced at the edges of
// dxscan: the driver and the cache's initialization entry points. The
// evaluator and cache's steady-state read paths never return an error —
// a missing symbol is a match miss, not a failure (see matcher package).
package dxerr

import "errors"

var (
	// ErrImageNotFound is returned when a requested file or archive entry
	// does not exist.
	ErrImageNotFound = errors.New("dxscan: image not found")

	// ErrMalformedArchive is returned when a container's signature or
	// header is invalid.
	ErrMalformedArchive = errors.New("dxscan: malformed archive")

	// ErrOutsideBoundary is returned when a read would cross the end of
	// the mapped image.
	ErrOutsideBoundary = errors.New("dxscan: read outside image boundary")

	// ErrWriteFailure is returned when an export write could not be
	// completed; the destination may contain a partial file.
	ErrWriteFailure = errors.New("dxscan: export write failed")

	// ErrCrossRefsAlreadyBuilt is returned by AddImage when an image is
	// added after the cross-image reference build has already run against the engine's
	// current image set.
	ErrCrossRefsAlreadyBuilt = errors.New("dxscan: cannot add image after cross-image references are built")

	// ErrFlagsNotReady names the case of prerequisite need-flags not yet
	// initialized on every image. No code path in this module returns it:
	// the cross-image reference build initializes those flags itself.
	ErrFlagsNotReady = errors.New("dxscan: prerequisite cache flags not initialized")
)
