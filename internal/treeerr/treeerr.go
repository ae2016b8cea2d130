// Package treeerr holds the sentinel errors of the taxonomy in spec.md §7,
// shared by every internal package so callers can discriminate failure
// classes with errors.Is regardless of which layer raised them. The root
// package re-exports these as its public error values.
package treeerr

import "github.com/pkg/errors"

var (
	// ErrPreconditionFailed marks a fail-fast check violated before any
	// work began: a non-empty tree at the start of a load, beta outside
	// [0,1], a non-positive max_leaves, an unknown algorithm. An empty STR
	// dimension order is replaced by the default order, not rejected.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrParseError marks a malformed or truncated leaf-entry stream.
	ErrParseError = errors.New("parse error")

	// ErrResourceExhausted marks a failure to create the load's scratch
	// directory or an inverted-index directory. Failures to create
	// individual scratch files are not marked with it.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCorruption marks a structurally invalid block: a count exceeding
	// capacity, a handle past the end of the file, a dangling child
	// pointer. Fatal; the load must abort.
	ErrCorruption = errors.New("corruption")
)

// Precondition wraps ErrPreconditionFailed with a formatted message.
func Precondition(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPreconditionFailed, format, args...)
}

// Parse wraps ErrParseError with a formatted message.
func Parse(format string, args ...interface{}) error {
	return errors.Wrapf(ErrParseError, format, args...)
}

// ResourceExhausted wraps ErrResourceExhausted with a formatted message.
func ResourceExhausted(format string, args ...interface{}) error {
	return errors.Wrapf(ErrResourceExhausted, format, args...)
}

// Corrupt wraps ErrCorruption with a formatted message.
func Corrupt(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruption, format, args...)
}
