package irwi

import (
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v5"
)

// Algorithm selects which bulk-load procedure BulkLoad runs (spec.md §6.4).
type Algorithm string

const (
	AlgorithmSTR       Algorithm = "str"
	AlgorithmSTR2      Algorithm = "str2"
	AlgorithmHilbert   Algorithm = "hilbert"
	AlgorithmQuickload Algorithm = "quickload"
	AlgorithmOBO       Algorithm = "obo"
)

// LoaderConfig bundles the seven loader parameters from spec.md §6.4, plus
// the ambient logging/progress/scratch-directory knobs every loader needs
// regardless of algorithm.
type LoaderConfig struct {
	// Algorithm selects the bulk-load procedure.
	Algorithm Algorithm
	// Beta weights spatial enlargement against textual cost, in [0,1].
	// Used by quickload and obo.
	Beta float64
	// MemoryMB bounds the external-sort memory budget. Used by str,
	// str2 and hilbert.
	MemoryMB int64
	// MaxLeaves bounds the number of resident leaf groups. Used by
	// quickload.
	MaxLeaves int
	// Limit caps the number of input entries consumed; 0 means no limit.
	Limit int64
	// BlockSize sets the storage block size Open uses, for a new or an
	// existing tree. Defaults to 4096 (spec.md §6.4) when zero.
	BlockSize int
	// Lambda sets the posting-list trajectory-id capacity Open uses, for
	// a new or an existing tree. Defaults to 40 (spec.md §6.4) when zero.
	Lambda int

	// ScratchDir is where loaders write their level-summary files, and
	// the Hilbert loader its index-tagged copy of the input. When empty,
	// BulkLoad creates a temporary directory and removes it when the load
	// returns. STR sorts the input file itself in place, with its
	// external-sort run files beside the input file.
	ScratchDir string
	// Logger receives BulkLoad's start-of-load line; when nil, the logrus
	// standard logger is used. The STR and Hilbert loaders write their
	// phase lines to the logrus standard logger whatever this field
	// holds; Quickload and OBO do not log.
	Logger *logrus.Entry
	// Progress, when non-nil, receives a single coarse-grained bar for
	// the whole load; loaders do not report incremental ticks mid-phase,
	// since per-item progress would dominate the work it measures.
	Progress *mpb.Progress
}

const (
	defaultBlockSize = 4096
	defaultLambda    = 40
)

func (c LoaderConfig) blockSizeOrDefault() int {
	if c.BlockSize > 0 {
		return c.BlockSize
	}
	return defaultBlockSize
}

func (c LoaderConfig) lambdaOrDefault() int {
	if c.Lambda > 0 {
		return c.Lambda
	}
	return defaultLambda
}

func (c LoaderConfig) logger() *logrus.Entry {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (c LoaderConfig) scratchDirOr(fallback string) string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return fallback
}
