package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/theme-manager/internal/templates"
	"github.com/cozy-creator/theme-manager/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const themesPrefix = "THEMES"

type Config struct {
	Environment   string          `mapstructure:"environment"`
	ThemesHome    string          `mapstructure:"themes_home"`
	CacheDir      string          `mapstructure:"cache_dir"`
	ThemesDir     string          `mapstructure:"themes_dir"`
	InstallDir    string          `mapstructure:"install_dir"`
	ImageCacheDir string          `mapstructure:"image_cache_dir"`
	Workers       int             `mapstructure:"workers"`
	Transfer      TransferConfig  `mapstructure:"transfer"`
	Cache         CacheConfig     `mapstructure:"cache"`
	Download      DownloadConfig  `mapstructure:"download"`
	Installer     InstallerConfig `mapstructure:"installer"`
	Patcher       PatcherConfig   `mapstructure:"patcher"`
}

type TransferConfig struct {
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	Timeout        int    `mapstructure:"timeout"`
	UserAgent      string `mapstructure:"user_agent"`
}

type CacheConfig struct {
	Capacity       int    `mapstructure:"capacity"`
	Eviction       string `mapstructure:"eviction"`
	ThumbnailWidth int    `mapstructure:"thumbnail_width"`
}

type DownloadConfig struct {
	MinFreeMB int `mapstructure:"min_free_mb"`
	ChunkSize int `mapstructure:"chunk_size"`
	Timeout   int `mapstructure:"timeout"`
}

type InstallerConfig struct {
	SystemRoot        string `mapstructure:"system_root"`
	PluginConfig      string `mapstructure:"plugin_config"`
	OutputDir         string `mapstructure:"output_dir"`
	ArtifactExt       string `mapstructure:"artifact_ext"`
	AtomicConfigWrite bool   `mapstructure:"atomic_config_write"`
	MenuTitleID       string `mapstructure:"menu_title_id"`
}

type PatcherConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

var config *Config

func IsLoaded() bool {
	return config != nil
}

// LoadEnvAndConfigFiles resolves the home directory, makes sure the .env and
// config.yaml files exist there, and loads them into viper.
func LoadEnvAndConfigFiles() error {
	themesHome, err := getThemesHome()
	if err != nil {
		return err
	}

	if err := createThemesHomeDirs(themesHome); err != nil {
		return err
	}
	viper.Set("themes_home", themesHome)

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(themesHome, ".env")
	}

	configFile := viper.GetString("config_file")
	if configFile == "" {
		configFile = filepath.Join(themesHome, "config.yaml")
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat .env file: %w", err)
	}

	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config.yaml file: %w", err)
		}

		if err := templates.WriteConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config.yaml file: %w", err)
		}
	}

	viper.SetEnvPrefix(themesPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	viper.AutomaticEnv()
	viper.SetConfigFile(configFile)
	setDefaults(themesHome)

	if err := LoadConfig(true); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	config = cfg
	return nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

// Default returns a fully populated config rooted at home without touching
// viper. Tests and embedders use it instead of the file based loader.
func Default(home string) *Config {
	return &Config{
		Environment:   "development",
		ThemesHome:    home,
		CacheDir:      filepath.Join(home, "cache"),
		ThemesDir:     filepath.Join(home, "themes"),
		InstallDir:    filepath.Join(home, "installed"),
		ImageCacheDir: filepath.Join(home, "images"),
		Workers:       DefaultWorkers,
		Transfer: TransferConfig{
			MaxConcurrent:  DefaultMaxConcurrentTransfers,
			ConnectTimeout: DefaultConnectTimeout,
			Timeout:        DefaultTransferTimeout,
			UserAgent:      DefaultUserAgent,
		},
		Cache: CacheConfig{
			Capacity:       DefaultCacheCapacity,
			Eviction:       EvictionInsertion,
			ThumbnailWidth: DefaultThumbnailWidth,
		},
		Download: DownloadConfig{
			MinFreeMB: DefaultMinFreeMB,
			ChunkSize: DefaultChunkSize,
			Timeout:   DefaultDownloadTimeout,
		},
		Installer: InstallerConfig{
			SystemRoot:   filepath.Join(home, "system"),
			PluginConfig: filepath.Join(home, "plugin", "config.json"),
			OutputDir:    DefaultOutputDir,
			ArtifactExt:  DefaultArtifactExt,
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Transfer.MaxConcurrent <= 0:
		return fmt.Errorf("%w: transfer.max_concurrent must be positive", ErrInvalidConfig)
	case c.Cache.Capacity <= 0:
		return fmt.Errorf("%w: cache.capacity must be positive", ErrInvalidConfig)
	case c.Download.ChunkSize <= 0:
		return fmt.Errorf("%w: download.chunk_size must be positive", ErrInvalidConfig)
	case c.Download.MinFreeMB < 0:
		return fmt.Errorf("%w: download.min_free_mb must not be negative", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Workers <= c.Transfer.MaxConcurrent:
		// Transfers hold pool workers while they run; install passes need one left over.
		return fmt.Errorf("%w: workers must exceed transfer.max_concurrent", ErrInvalidConfig)
	}

	switch c.Cache.Eviction {
	case EvictionInsertion, EvictionLRU:
	default:
		return fmt.Errorf("%w: unknown cache.eviction %q", ErrInvalidConfig, c.Cache.Eviction)
	}

	return nil
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.ThemesHome, &c.CacheDir, &c.ThemesDir, &c.InstallDir, &c.ImageCacheDir,
		&c.Installer.SystemRoot, &c.Installer.PluginConfig,
	}
	for _, p := range paths {
		expanded, err := pathutil.ExpandPath(*p)
		if err != nil {
			return ErrThemesHomeExpandFailed
		}
		*p = expanded
	}

	return nil
}

// Returns the themes home directory path.
// It attempts to retrieve the themes home directory from the following sources in order:
// 1. The `themes_home` flag from viper.
// 2. The `THEMES_HOME` environment variable.
// 3. The default themes home directory.
func getThemesHome() (string, error) {
	themesHome := viper.GetString("themes_home")
	if themesHome == "" {
		themesHome = os.Getenv("THEMES_HOME")
		if themesHome == "" {
			themesHome = DefaultThemesHome
		}
	}

	themesHome, err := pathutil.ExpandPath(themesHome)
	if err != nil {
		return "", fmt.Errorf("failed to expand themes home path: %w", err)
	}

	return themesHome, nil
}

func setDefaults(themesHome string) {
	d := Default(themesHome)

	viper.SetDefault("environment", d.Environment)
	viper.SetDefault("cache_dir", d.CacheDir)
	viper.SetDefault("themes_dir", d.ThemesDir)
	viper.SetDefault("install_dir", d.InstallDir)
	viper.SetDefault("image_cache_dir", d.ImageCacheDir)
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("transfer.max_concurrent", d.Transfer.MaxConcurrent)
	viper.SetDefault("transfer.connect_timeout", d.Transfer.ConnectTimeout)
	viper.SetDefault("transfer.timeout", d.Transfer.Timeout)
	viper.SetDefault("transfer.user_agent", d.Transfer.UserAgent)
	viper.SetDefault("cache.capacity", d.Cache.Capacity)
	viper.SetDefault("cache.eviction", d.Cache.Eviction)
	viper.SetDefault("cache.thumbnail_width", d.Cache.ThumbnailWidth)
	viper.SetDefault("download.min_free_mb", d.Download.MinFreeMB)
	viper.SetDefault("download.chunk_size", d.Download.ChunkSize)
	viper.SetDefault("download.timeout", d.Download.Timeout)
	viper.SetDefault("installer.system_root", d.Installer.SystemRoot)
	viper.SetDefault("installer.plugin_config", d.Installer.PluginConfig)
	viper.SetDefault("installer.output_dir", d.Installer.OutputDir)
	viper.SetDefault("installer.artifact_ext", d.Installer.ArtifactExt)
}

func createThemesHomeDirs(themesHome string) error {
	if themesHome == "" {
		return ErrThemesHomeNotSet
	}

	if err := os.MkdirAll(themesHome, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create themes home directory: %w", err)
	}

	return nil
}
