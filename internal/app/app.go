package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cozy-creator/theme-manager/internal/config"
	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/services/imagecache"
	"github.com/cozy-creator/theme-manager/internal/services/installer"
	"github.com/cozy-creator/theme-manager/internal/services/orchestrator"
	"github.com/cozy-creator/theme-manager/internal/services/themedownloader"
	"github.com/cozy-creator/theme-manager/internal/services/transfer"
	"github.com/cozy-creator/theme-manager/internal/utils/diskutil"
	"github.com/cozy-creator/theme-manager/pkg/logger"

	"go.uber.org/zap"
)

type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	executor     *executor.Executor
	scheduler    *transfer.Scheduler
	cache        *imagecache.Cache
	installer    *installer.Installer
	orchestrator *orchestrator.Orchestrator
	space        diskutil.SpaceChecker

	Logger *zap.Logger
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithSpaceChecker replaces the statfs based free space query.
func WithSpaceChecker(space diskutil.SpaceChecker) OptionFunc {
	return func(app *App) error {
		app.space = space
		return nil
	}
}

func WithTransferScheduler() OptionFunc {
	return func(app *App) error {
		cfg := app.config.Transfer
		app.scheduler = transfer.NewScheduler(transfer.Options{
			MaxConcurrent:  cfg.MaxConcurrent,
			ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
			Timeout:        time.Duration(cfg.Timeout) * time.Second,
			UserAgent:      cfg.UserAgent,
		}, app.executor, app.Logger)
		return nil
	}
}

func WithImageCache(renderer imagecache.Renderer) OptionFunc {
	return func(app *App) error {
		if app.scheduler == nil {
			return fmt.Errorf("image cache requires the transfer scheduler")
		}

		cfg := app.config.Cache
		cache, err := imagecache.New(imagecache.Options{
			Dir:            app.config.ImageCacheDir,
			Capacity:       cfg.Capacity,
			Eviction:       cfg.Eviction,
			ThumbnailWidth: cfg.ThumbnailWidth,
		}, app.scheduler, renderer, app.Logger)
		if err != nil {
			return err
		}

		app.cache = cache
		return nil
	}
}

// WithInstaller builds the installer. A nil patcher runs the configured
// patch command.
func WithInstaller(patcher installer.Patcher) OptionFunc {
	return func(app *App) error {
		if patcher == nil {
			patcher = installer.NewExecPatcher(app.config.Patcher.Command, app.config.Patcher.Args)
		}

		cfg := app.config.Installer
		app.installer = installer.New(installer.Options{
			SystemRoot:        cfg.SystemRoot,
			InstallDir:        app.config.InstallDir,
			ThemesDir:         app.config.ThemesDir,
			PluginConfig:      cfg.PluginConfig,
			OutputDir:         cfg.OutputDir,
			ArtifactExt:       cfg.ArtifactExt,
			AtomicConfigWrite: cfg.AtomicConfigWrite,
			MenuTitleID:       cfg.MenuTitleID,
		}, patcher, app.Logger)
		return nil
	}
}

func WithOrchestrator(activate bool) OptionFunc {
	return func(app *App) error {
		if app.installer == nil {
			return fmt.Errorf("orchestrator requires the installer")
		}

		var ticker orchestrator.Ticker
		if app.scheduler != nil {
			ticker = app.scheduler
		}

		app.orchestrator = orchestrator.New(orchestrator.Options{
			Download: app.DownloadOptions(),
			Activate: activate,
		}, app.executor, app.installer, app.space, ticker, app.Logger)
		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.NewLogger(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
		executor:   executor.New(config.Workers),
		space:      diskutil.StatfsChecker{},
	}

	// Apply all options
	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return app, nil
}

// DownloadOptions derives the download job settings from the config.
func (app *App) DownloadOptions() themedownloader.Options {
	cfg := app.config
	return themedownloader.Options{
		CacheDir:       cfg.CacheDir,
		ThemesDir:      cfg.ThemesDir,
		MinFreeBytes:   uint64(cfg.Download.MinFreeMB) << 20,
		ChunkSize:      cfg.Download.ChunkSize,
		ConnectTimeout: time.Duration(cfg.Transfer.ConnectTimeout) * time.Second,
		Timeout:        time.Duration(cfg.Download.Timeout) * time.Second,
		UserAgent:      cfg.Transfer.UserAgent,
	}
}

// Tick drives the scheduler and runs posted results on the calling
// goroutine. It reports whether work remains.
func (app *App) Tick() bool {
	if app.orchestrator != nil {
		return app.orchestrator.Tick()
	}

	busy := false
	if app.scheduler != nil {
		busy = app.scheduler.Tick()
	}
	app.executor.Drain()

	return busy || app.executor.Pending() > 0
}

// Close joins download workers before stopping the pool they run on.
func (app *App) Close() {
	app.cancelFunc()

	if app.orchestrator != nil {
		app.orchestrator.Close()
	}
	if app.scheduler != nil {
		app.scheduler.Close()
	}
	app.executor.StopWait()

	_ = app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) Executor() *executor.Executor {
	return app.executor
}

func (app *App) Scheduler() *transfer.Scheduler {
	return app.scheduler
}

func (app *App) Cache() *imagecache.Cache {
	return app.cache
}

func (app *App) Installer() *installer.Installer {
	return app.installer
}

func (app *App) Orchestrator() *orchestrator.Orchestrator {
	return app.orchestrator
}

func (app *App) SpaceChecker() diskutil.SpaceChecker {
	return app.space
}
