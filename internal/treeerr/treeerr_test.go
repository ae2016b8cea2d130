package treeerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWrappersPreserveSentinelForErrorsIs(t *testing.T) {
	require.True(t, errors.Is(Precondition("beta %v out of range", 2.0), ErrPreconditionFailed))
	require.True(t, errors.Is(Parse("truncated at byte %d", 17), ErrParseError))
	require.True(t, errors.Is(ResourceExhausted("directory allocation failed"), ErrResourceExhausted))
	require.True(t, errors.Is(Corrupt("count %d exceeds capacity %d", 9, 7), ErrCorruption))
}

func TestWrappersAreDistinguishable(t *testing.T) {
	err := Precondition("tree must be empty")
	require.False(t, errors.Is(err, ErrParseError))
	require.False(t, errors.Is(err, ErrCorruption))
}
