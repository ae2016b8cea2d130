package irwi

import (
	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/treeerr"
)

// Error taxonomy (spec.md §7), re-exported from internal/treeerr so callers
// outside this module can discriminate failure classes with errors.Is
// without reaching into internal packages.
var (
	// ErrPreconditionFailed is returned when a bulk load starts from an
	// invalid state: a non-empty destination tree, beta outside [0,1], a
	// non-positive max_leaves for quickload, an unknown algorithm. An
	// empty STR dimension order is replaced by the default order, not
	// rejected.
	ErrPreconditionFailed = treeerr.ErrPreconditionFailed
	// ErrParseError is returned when the leaf-entry input stream is
	// malformed or truncated.
	ErrParseError = treeerr.ErrParseError
	// ErrResourceExhausted is returned when BulkLoad cannot create its
	// scratch directory or an inverted-index directory cannot be
	// allocated. A failure to create an individual scratch file is
	// returned as a wrapped error without this sentinel.
	ErrResourceExhausted = treeerr.ErrResourceExhausted
	// ErrCorruption is returned when an on-disk invariant is violated: a
	// block's count exceeds its capacity, a handle points past the file,
	// or a child pointer is dangling.
	ErrCorruption = treeerr.ErrCorruption
)

// Is reports whether err (or one it wraps, via pkg/errors' Unwrap) matches
// target. A thin re-export of errors.Is so callers need not import
// github.com/pkg/errors themselves just to discriminate taxonomy classes.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
