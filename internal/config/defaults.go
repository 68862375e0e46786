package config

import "errors"

const (
	DefaultThemesHome = "~/.theme-manager"
	DefaultUserAgent  = "theme-manager/1.0"

	DefaultWorkers                = 8
	DefaultMaxConcurrentTransfers = 4
	DefaultConnectTimeout         = 10
	DefaultTransferTimeout        = 30
	DefaultCacheCapacity          = 64
	DefaultThumbnailWidth         = 0
	DefaultMinFreeMB              = 100
	DefaultChunkSize              = 64 * 1024
	DefaultDownloadTimeout        = 0
	DefaultOutputDir              = "content"
	DefaultArtifactExt            = ".bps"
)

const (
	EvictionInsertion = "insertion"
	EvictionLRU       = "lru"
)

var (
	ErrThemesHomeNotSet       = errors.New("themes home directory is not set")
	ErrThemesHomeExpandFailed = errors.New("failed to expand themes home directory")
	ErrInvalidConfig          = errors.New("invalid config")
)
