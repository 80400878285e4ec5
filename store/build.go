package store

import (
	"errors"

	"github.com/chazu/mlbf/compiler"
	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/pkg/image"
	"github.com/chazu/mlbf/pkg/optimizer"
)

// Build is a program produced by Compile.
type Build struct {
	Program *bytecode.Program
	Stats   *optimizer.Stats // nil when served from the cache
	Key     string
	Cached  bool
}

// Compile compiles and optimizes src. When s is non-nil the cache is
// consulted first and filled on a miss. Builds restricted to a subset of
// passes bypass the cache, since the key only covers the level.
func Compile(s *Store, src string, opts optimizer.Options) (*Build, error) {
	key := Key(src, opts.Level)
	cacheable := s != nil && len(opts.Passes) == 0

	if cacheable {
		p, _, err := s.LoadProgram(key)
		if err == nil {
			return &Build{Program: p, Key: key, Cached: true}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Warningf("reading %s: %s", key, err)
		}
	}

	res, err := compiler.Compile(src)
	if err != nil {
		return nil, err
	}
	stats, err := optimizer.Optimize(res.Program, opts)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.SaveProgram(key, res.Program, MetaFor(key, opts.Level)); err != nil {
			log.Warningf("writing %s: %s", key, err)
		}
	}
	return &Build{Program: res.Program, Stats: stats, Key: key}, nil
}

// MetaFor returns the image metadata for a linked program built at level.
func MetaFor(key string, level int) image.Meta {
	flags := image.FlagLinked
	if level > 0 {
		flags |= image.FlagOptimized
	}
	return image.Meta{Flags: flags, Level: level, SourceHash: key}
}
