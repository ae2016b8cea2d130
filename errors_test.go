package irwi

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIsDiscriminatesTaxonomyClasses(t *testing.T) {
	wrapped := errors.Wrap(ErrCorruption, "reading block 12")
	require.True(t, Is(wrapped, ErrCorruption))
	require.False(t, Is(wrapped, ErrPreconditionFailed))
}
