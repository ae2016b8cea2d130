// Package config reads loader configuration from a YAML file and/or
// IRWI_-prefixed environment variables (spec.md §6.4), using
// github.com/spf13/viper the way vconvert/config.go in the pack reads
// vconvert.yaml: SetConfigFile/AddConfigPath, ReadInConfig, SetDefault
// fallbacks, then typed Get calls. Unlike that package-level usage this
// uses a private viper.New() instance, since a library must not mutate
// global configuration state shared with its caller's own viper usage.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Loaded mirrors the fields LoaderConfig needs; it is a plain struct
// (rather than the root package's LoaderConfig) so this package need not
// import the root package, which itself imports internal packages.
type Loaded struct {
	Algorithm  string
	Beta       float64
	MemoryMB   int64
	MaxLeaves  int
	Limit      int64
	BlockSize  int
	Lambda     int
	ScratchDir string
}

// Defaults matches spec.md §6.4's defaults.
func Defaults() Loaded {
	return Loaded{
		Algorithm: "str",
		BlockSize: 4096,
		Lambda:    40,
	}
}

// Load reads configuration from path (if non-empty) and from IRWI_-prefixed
// environment variables, falling back to Defaults() for anything neither
// source sets.
func Load(path string) (Loaded, error) {
	v := viper.New()
	v.SetEnvPrefix("IRWI")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("algorithm", d.Algorithm)
	v.SetDefault("beta", d.Beta)
	v.SetDefault("memory_mb", d.MemoryMB)
	v.SetDefault("max_leaves", d.MaxLeaves)
	v.SetDefault("limit", d.Limit)
	v.SetDefault("block_size", d.BlockSize)
	v.SetDefault("lambda", d.Lambda)
	v.SetDefault("scratch_dir", d.ScratchDir)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, errors.Wrap(err, "config: read config file")
		}
	}

	return Loaded{
		Algorithm:  v.GetString("algorithm"),
		Beta:       v.GetFloat64("beta"),
		MemoryMB:   v.GetInt64("memory_mb"),
		MaxLeaves:  v.GetInt("max_leaves"),
		Limit:      v.GetInt64("limit"),
		BlockSize:  v.GetInt("block_size"),
		Lambda:     v.GetInt("lambda"),
		ScratchDir: v.GetString("scratch_dir"),
	}, nil
}
