package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"
)

const (
	defaultLargeFileThreshold = 1 << 20
	defaultWorkers            = 4
	defaultTreeCacheSize      = 1024
)

// Config stores repository-local settings.
type Config struct {
	Compression        bool          `toml:"compression"`
	LargeFileThreshold int64         `toml:"large_file_threshold"`
	Workers            int           `toml:"workers"`
	TreeCacheSize      int           `toml:"tree_cache_size"`
	Chunker            ChunkerConfig `toml:"chunker"`
	User               UserConfig    `toml:"user"`
}

// ChunkerConfig fixes the large-file chunking parameters. The polynomial
// is drawn once at init; changing it stops new files from sharing chunks
// with old ones.
type ChunkerConfig struct {
	Polynomial uint64 `toml:"polynomial"`
	MinSize    uint   `toml:"min_size"`
	MaxSize    uint   `toml:"max_size"`
}

// UserConfig identifies who records commits.
type UserConfig struct {
	Name       string `toml:"name,omitempty"`
	SigningKey string `toml:"signing_key,omitempty"`
}

// DefaultConfig returns the settings a new repository starts with.
func DefaultConfig() *Config {
	return &Config{
		Compression:        true,
		LargeFileThreshold: defaultLargeFileThreshold,
		Workers:            defaultWorkers,
		TreeCacheSize:      defaultTreeCacheSize,
	}
}

func (c *Config) normalize() {
	if c.LargeFileThreshold <= 0 {
		c.LargeFileThreshold = defaultLargeFileThreshold
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.TreeCacheSize <= 0 {
		c.TreeCacheSize = defaultTreeCacheSize
	}
}

func configPath(dir string) string {
	return filepath.Join(dir, "config.toml")
}

// readConfig reads .snapvault/config.toml. Missing keys keep their
// defaults; a missing file yields the defaults.
func readConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func writeConfig(dir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := renameio.WriteFile(configPath(dir), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WriteConfig atomically replaces the repository config. Settings that
// shape open handles (compression, cache size, chunker) apply from the
// next Open.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()
	if err := writeConfig(r.Dir, cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}
