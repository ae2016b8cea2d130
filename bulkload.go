package irwi

import (
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/loader/hilbert"
	"github.com/scigolib/irwi/internal/loader/obo"
	"github.com/scigolib/irwi/internal/loader/quickload"
	"github.com/scigolib/irwi/internal/loader/str"
	"github.com/scigolib/irwi/internal/treeerr"
)

const bytesPerMB = 1024 * 1024

// BulkLoad builds t from a flat file of geo.EntrySize-byte encoded
// geo.LeafEntry records at inputPath, dispatching to the algorithm named by
// cfg.Algorithm (spec.md §6.4). t must be empty.
func BulkLoad(t *Tree, inputPath string, cfg LoaderConfig) error {
	totalItems, err := countEntries(inputPath)
	if err != nil {
		return err
	}
	if cfg.Limit > 0 && cfg.Limit < totalItems {
		totalItems = cfg.Limit
	}

	scratchDir, cleanup, err := scratchDirFor(t, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	log := cfg.logger().WithField("algorithm", string(cfg.Algorithm))

	var bar *mpb.Bar
	if cfg.Progress != nil {
		bar = cfg.Progress.AddBar(totalItems,
			mpb.PrependDecorators(decor.Name(string(cfg.Algorithm))),
			mpb.AppendDecorators(decor.Percentage()),
		)
		defer bar.SetTotal(totalItems, true)
	}

	log.WithField("items", totalItems).Info("bulk load starting")

	switch cfg.Algorithm {
	case AlgorithmSTR:
		return str.Load(t.storage, inputPath, totalItems, str.Config{
			Order:        str.DefaultOrder,
			MemoryBudget: cfg.memoryBudgetBytes(),
			ScratchDir:   scratchDir,
		})
	case AlgorithmSTR2:
		return str.Load(t.storage, inputPath, totalItems, str.Config{
			Order:        str.AltOrder,
			MemoryBudget: cfg.memoryBudgetBytes(),
			ScratchDir:   scratchDir,
		})
	case AlgorithmHilbert:
		return hilbert.Load(t.storage, inputPath, totalItems, hilbert.Config{
			MemoryBudget: cfg.memoryBudgetBytes(),
			ScratchDir:   scratchDir,
		})
	case AlgorithmQuickload:
		if cfg.MaxLeaves <= 0 {
			return treeerr.Precondition("irwi: max_leaves must be positive")
		}
		return quickload.Load(t.storage, inputPath, totalItems, quickload.Config{
			Beta:       cfg.Beta,
			MaxLeaves:  cfg.MaxLeaves,
			ScratchDir: scratchDir,
		})
	case AlgorithmOBO:
		return obo.Load(t.storage, inputPath, totalItems, obo.Config{Beta: cfg.Beta})
	default:
		return treeerr.Precondition("irwi: unknown algorithm %q", string(cfg.Algorithm))
	}
}

func (c LoaderConfig) memoryBudgetBytes() int64 {
	return c.MemoryMB * bytesPerMB
}

// countEntries returns the number of geo.EntrySize-byte records stored in
// the file at path, failing with ParseError if the file size is not an
// exact multiple of the record size (spec.md §7).
func countEntries(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "irwi: stat input")
	}
	size := info.Size()
	if size%geo.EntrySize != 0 {
		return 0, treeerr.Parse("irwi: input size %d is not a multiple of entry size %d (%s)", size, geo.EntrySize, bytefmt.ByteSize(uint64(size)))
	}
	return size / geo.EntrySize, nil
}

func scratchDirFor(t *Tree, cfg LoaderConfig) (string, func(), error) {
	if dir := cfg.scratchDirOr(""); dir != "" {
		return dir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "irwi-scratch-*")
	if err != nil {
		return "", func() {}, treeerr.ResourceExhausted("irwi: create scratch directory: %v", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
