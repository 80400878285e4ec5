// Package manifest handles mlbf.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "mlbf.toml"

// Config represents an mlbf.toml file. Field names double as JSON names so
// the CUE schema can check the decoded value.
type Config struct {
	VM        VMConfig        `toml:"vm" json:"vm"`
	Optimizer OptimizerConfig `toml:"optimizer" json:"optimizer"`
	Cache     CacheConfig     `toml:"cache" json:"cache"`
	Log       LogConfig       `toml:"log" json:"log"`
	Server    ServerConfig    `toml:"server" json:"server"`

	// Dir is the directory containing the mlbf.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// VMConfig configures the interpreter and transpilers.
type VMConfig struct {
	TapeSize int    `toml:"tape-size" json:"tape-size"`
	EOF      string `toml:"eof" json:"eof"`
}

// OptimizerConfig selects optimization passes.
type OptimizerConfig struct {
	Level  int      `toml:"level" json:"level"`
	Passes []string `toml:"passes" json:"passes"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// ServerConfig configures the HTTP playground.
type ServerConfig struct {
	Addr       string `toml:"addr" json:"addr"`
	RunTimeout string `toml:"run-timeout" json:"run-timeout"`
	ProgramTTL string `toml:"program-ttl" json:"program-ttl"`
}

// Default returns the configuration used when no mlbf.toml exists.
func Default() *Config {
	c := newConfig()
	c.applyDefaults()
	return c
}

// newConfig returns a Config holding the defaults that cannot be told apart
// from zero values after decoding.
func newConfig() *Config {
	return &Config{
		Optimizer: OptimizerConfig{Level: 1},
		Cache:     CacheConfig{Enabled: true},
	}
}

func (c *Config) applyDefaults() {
	if c.VM.TapeSize == 0 {
		c.VM.TapeSize = 30000
	}
	if c.VM.EOF == "" {
		c.VM.EOF = "unchanged"
	}
	if c.Optimizer.Passes == nil {
		c.Optimizer.Passes = []string{}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:8420"
	}
	if c.Server.RunTimeout == "" {
		c.Server.RunTimeout = "5s"
	}
	if c.Server.ProgramTTL == "" {
		c.Server.ProgramTTL = "30m"
	}
}

// Load parses the mlbf.toml file in dir, applies defaults and validates it.
// Keys absent from the file keep their defaults, so a level of 0 must be
// set explicitly to disable optimization.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := newConfig()
	meta, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an mlbf.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CachePath returns the cache database path, resolved against Dir when
// relative. An empty path means the store's default location.
func (c *Config) CachePath() string {
	if c.Cache.Path == "" || filepath.IsAbs(c.Cache.Path) || c.Dir == "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Dir, c.Cache.Path)
}

// RunTimeout returns the server's per-run time limit.
func (c *Config) RunTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.RunTimeout)
	return d
}

// ProgramTTL returns how long the server keeps an idle program.
func (c *Config) ProgramTTL() time.Duration {
	d, _ := time.ParseDuration(c.Server.ProgramTTL)
	return d
}
