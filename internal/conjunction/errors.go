// Package conjunction turns a snapshot's two sample clouds into relative
// position diffs, bins all-pairs diffs into an adaptive voxel grid, and
// derives the collision statistics that get published.
package conjunction

import "errors"

var (
	// ErrGridOverflow means a diff fell outside the current voxel grid. The
	// binning loop retries with a wider grid.
	ErrGridOverflow = errors.New("conjunction: diff outside voxel grid")
	// ErrInvalidGrid means no voxel grid can be sized from the one-to-one
	// bounds, e.g. a diff beyond float32 range. Widening cannot help.
	ErrInvalidGrid = errors.New("conjunction: voxel grid cannot be sized")
	// ErrRetriesExhausted wraps ErrGridOverflow once every attempt overflowed.
	ErrRetriesExhausted = errors.New("conjunction: binning retries exhausted")
	// ErrCanceled reports that the caller's cancellation check fired.
	ErrCanceled = errors.New("conjunction: canceled")
	// ErrEmptyDiffSet means there was nothing to compute statistics over.
	ErrEmptyDiffSet = errors.New("conjunction: empty diff set")
	// ErrNotReady is returned when a later stage runs before an earlier one.
	ErrNotReady = errors.New("conjunction: stage not computed")
)
