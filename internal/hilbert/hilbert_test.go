package hilbert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRejectsOversizedDimensionPrecision(t *testing.T) {
	_, err := New(7, 10) // 70 > 64
	require.Error(t, err)
}

func TestRejectsZeroDimensionOrPrecision(t *testing.T) {
	_, err := New(0, 3)
	require.Error(t, err)
	_, err = New(3, 0)
	require.Error(t, err)
}

// TestRoundTripAllIndices enumerates all 512 indices at d=3,p=3 (spec.md
// §8) and checks that Index(InverseIndex(h)) == h for every one. This is
// the mandatory exactness check for the curve.
func TestRoundTripAllIndices(t *testing.T) {
	c, err := New(3, 3)
	require.NoError(t, err)

	for h := uint64(0); h < c.IndexCount(); h++ {
		point := c.InverseIndex(h)
		require.Len(t, point, 3)
		for _, coord := range point {
			require.Less(t, coord, uint32(1<<3))
		}

		got, err := c.Index(point)
		require.NoError(t, err)
		require.Equal(t, h, got, "round trip failed for index %d -> point %v", h, point)
	}
}

func TestRoundTripIsBijective(t *testing.T) {
	c, err := New(2, 4)
	require.NoError(t, err)

	seen := make(map[[2]uint32]bool)
	for h := uint64(0); h < c.IndexCount(); h++ {
		p := c.InverseIndex(h)
		key := [2]uint32{p[0], p[1]}
		require.False(t, seen[key], "point %v produced by more than one index", p)
		seen[key] = true
	}
	require.Len(t, seen, int(c.IndexCount()))
}

func TestIndexRejectsWrongDimension(t *testing.T) {
	c, err := New(3, 3)
	require.NoError(t, err)

	_, err = c.Index([]uint32{1, 2})
	require.Error(t, err)
}

func TestAdjacentIndicesAreSpatiallyClose(t *testing.T) {
	c, err := New(2, 5)
	require.NoError(t, err)

	for h := uint64(0); h < c.IndexCount()-1; h++ {
		a := c.InverseIndex(h)
		b := c.InverseIndex(h + 1)
		dist := 0
		for i := range a {
			d := int(a[i]) - int(b[i])
			if d < 0 {
				d = -d
			}
			dist += d
		}
		require.Equal(t, 1, dist, "hop from index %d to %d is not adjacent: %v -> %v", h, h+1, a, b)
	}
}
