package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWithDefaultRate(t *testing.T) {
	p := New(0)
	require.NotNil(t, p)
}

func TestNewWithExplicitRate(t *testing.T) {
	p := New(50 * time.Millisecond)
	require.NotNil(t, p)
}
