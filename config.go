package irwi

import (
	"github.com/scigolib/irwi/internal/config"
)

// LoadConfig reads a LoaderConfig from a YAML file at path (or from
// IRWI_-prefixed environment variables alone, when path is empty), falling
// back to spec.md §6.4's defaults for anything neither source sets.
func LoadConfig(path string) (LoaderConfig, error) {
	loaded, err := config.Load(path)
	if err != nil {
		return LoaderConfig{}, err
	}
	return LoaderConfig{
		Algorithm:  Algorithm(loaded.Algorithm),
		Beta:       loaded.Beta,
		MemoryMB:   loaded.MemoryMB,
		MaxLeaves:  loaded.MaxLeaves,
		Limit:      loaded.Limit,
		BlockSize:  loaded.BlockSize,
		Lambda:     loaded.Lambda,
		ScratchDir: loaded.ScratchDir,
	}, nil
}
