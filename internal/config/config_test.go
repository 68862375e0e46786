package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	home := t.TempDir()
	cfg := Default(home)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(home, "cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join(home, "themes"), cfg.ThemesDir)
	assert.Equal(t, filepath.Join(home, "installed"), cfg.InstallDir)
	assert.Equal(t, EvictionInsertion, cfg.Cache.Eviction)
	assert.False(t, cfg.Installer.AtomicConfigWrite)
}

func TestValidateRejectsBadLimits(t *testing.T) {
	tests := map[string]func(c *Config){
		"max concurrent": func(c *Config) { c.Transfer.MaxConcurrent = 0 },
		"capacity":       func(c *Config) { c.Cache.Capacity = -1 },
		"chunk size":     func(c *Config) { c.Download.ChunkSize = 0 },
		"min free":       func(c *Config) { c.Download.MinFreeMB = -5 },
		"workers":        func(c *Config) { c.Workers = 0 },
		"pool too small": func(c *Config) { c.Workers = c.Transfer.MaxConcurrent },
		"eviction":       func(c *Config) { c.Cache.Eviction = "random" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
