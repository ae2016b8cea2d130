// Package progress builds the *mpb.Progress instance BulkLoad renders its
// single coarse-grained bar onto (spec.md §9's optional progress sink),
// grounded on vconvert/handler.go's mpb.New(mpb.WithWaitGroup(...)) call —
// generalised here to accept any refresh rate instead of hard-coding one,
// since a bulk load (unlike vconvert's layer downloads) has no wait group
// of its own to hand in.
package progress

import (
	"time"

	"github.com/vbauerster/mpb/v5"
)

// New returns an *mpb.Progress refreshing at the given rate, ready to be
// set as a LoaderConfig's Progress field. A zero rate uses mpb's default.
func New(refreshRate time.Duration) *mpb.Progress {
	if refreshRate <= 0 {
		return mpb.New()
	}
	return mpb.New(mpb.WithRefreshRate(refreshRate))
}
