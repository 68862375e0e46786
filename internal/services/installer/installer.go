package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/pathutil"

	"go.uber.org/zap"
)

type Options struct {
	// SystemRoot holds the unmodified system files diffs are applied to.
	SystemRoot string
	// InstallDir holds one registry entry per installed theme.
	InstallDir string
	// ThemesDir is scanned for metadata.json when a theme has no registry entry.
	ThemesDir string
	// PluginConfig is the JSON file whose active-theme field Activate sets.
	PluginConfig string
	// OutputDir is the subtree of a theme folder patched files go to.
	OutputDir         string
	ArtifactExt       string
	AtomicConfigWrite bool
	MenuTitleID       string
}

type Installer struct {
	opts     Options
	patcher  Patcher
	registry *registry
	logger   *zap.Logger

	mu sync.Mutex
}

// ArtifactFailure records an artifact that could not be installed.
type ArtifactFailure struct {
	Path string
	Err  error
}

type InstallResult struct {
	Record   *Record
	Total    int
	Failures []ArtifactFailure
}

// Failed reports whether there were artifacts and none of them were patched.
func (r *InstallResult) Failed() bool {
	return r.Total > 0 && r.Record.PatchedFiles == 0
}

func New(opts Options, patcher Patcher, logger *zap.Logger) *Installer {
	if opts.OutputDir == "" {
		opts.OutputDir = "content"
	}
	if opts.ArtifactExt == "" {
		opts.ArtifactExt = ".bps"
	}

	return &Installer{
		opts:     opts,
		patcher:  patcher,
		registry: &registry{dir: opts.InstallDir},
		logger:   logger.Named("installer"),
	}
}

// Scan lists the diff artifacts under folder, skipping the output subtree.
// Artifacts with an unknown language code are returned as failures.
func (i *Installer) Scan(folder string) ([]Artifact, []ArtifactFailure, error) {
	outputDir := filepath.Join(folder, i.opts.OutputDir)

	var artifacts []Artifact
	var failures []ArtifactFailure
	err := filepath.WalkDir(folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p == outputDir {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(p), i.opts.ArtifactExt) {
			return nil
		}

		rel, err := filepath.Rel(folder, p)
		if err != nil {
			return err
		}

		artifact, err := Classify(rel)
		if err != nil {
			failures = append(failures, ArtifactFailure{Path: artifact.Path, Err: err})
			return nil
		}
		artifacts = append(artifacts, artifact)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", folder, err)
	}

	return artifacts, failures, nil
}

// Install patches every artifact in folder into its output subtree and
// records the theme in the registry. A failing artifact is logged and
// skipped; the registry entry is written whatever the outcome, unless ctx
// is cancelled first, in which case nothing is recorded.
func (i *Installer) Install(ctx context.Context, folder, themeID, name, author string) (*InstallResult, error) {
	if themeID == "" {
		return nil, errors.New("theme id is required")
	}
	if err := pathutil.ValidateID(themeID); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, types.IOError(fmt.Sprintf("theme folder %s not found", folder), err)
	}

	log := i.logger.With(zap.String("theme_id", themeID))

	artifacts, failures, err := i.Scan(folder)
	if err != nil {
		return nil, types.IOError("failed to scan theme folder", err)
	}
	total := len(artifacts) + len(failures)
	for _, f := range failures {
		log.Error("skipping artifact", zap.String("artifact", f.Path), zap.Error(f.Err))
	}

	patched := 0
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			log.Info("install cancelled", zap.Int("patched", patched))
			return nil, types.CancelledError()
		}

		if err := i.apply(ctx, folder, artifact); err != nil {
			log.Error("failed to patch artifact",
				zap.String("artifact", artifact.Path),
				zap.String("target", artifact.Target),
				zap.Error(err),
			)
			failures = append(failures, ArtifactFailure{Path: artifact.Path, Err: err})
			continue
		}

		patched++
		log.Debug("patched artifact", zap.String("artifact", artifact.Path), zap.String("target", artifact.Target))
	}

	rec := &Record{
		ThemeID:      themeID,
		ThemeName:    name,
		ThemeAuthor:  author,
		InstallPath:  folder,
		PatchedFiles: patched,
	}

	if ctx.Err() != nil {
		log.Info("install cancelled", zap.Int("patched", patched))
		return nil, types.CancelledError()
	}

	i.mu.Lock()
	err = i.registry.write(rec)
	i.mu.Unlock()
	if err != nil {
		return nil, types.IOError("failed to write registry entry", err)
	}

	result := &InstallResult{
		Record:   rec,
		Total:    total,
		Failures: failures,
	}

	if result.Failed() {
		log.Warn("no artifacts could be patched", zap.Int("artifacts", result.Total))
	} else {
		log.Info("theme installed", zap.Int("patched", patched), zap.Int("failed", len(failures)))
	}

	return result, nil
}

func (i *Installer) apply(ctx context.Context, folder string, artifact Artifact) error {
	patch, err := os.ReadFile(filepath.Join(folder, filepath.FromSlash(artifact.Path)))
	if err != nil {
		return types.PatchError("failed to read artifact", err)
	}

	base, err := os.ReadFile(filepath.Join(i.opts.SystemRoot, filepath.FromSlash(artifact.Target)))
	if err != nil {
		return types.PatchError(fmt.Sprintf("missing base file %s", artifact.Target), err)
	}

	out, err := i.patcher.Apply(ctx, base, patch)
	if err != nil {
		return types.PatchError(fmt.Sprintf("failed to patch %s", artifact.Target), err)
	}

	dest := filepath.Join(folder, i.opts.OutputDir, filepath.FromSlash(artifact.Target))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return types.IOError("failed to create output directory", err)
	}
	if err := os.WriteFile(dest, out, 0644); err != nil {
		return types.IOError(fmt.Sprintf("failed to write %s", dest), err)
	}

	return nil
}

// Uninstall deletes the theme folder and its registry entry.
func (i *Installer) Uninstall(themeID string) error {
	if err := pathutil.ValidateID(themeID); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	rec, err := i.registry.read(themeID)
	if err != nil {
		return err
	}

	if rec.InstallPath != "" {
		if err := os.RemoveAll(rec.InstallPath); err != nil {
			return types.IOError(fmt.Sprintf("failed to remove %s", rec.InstallPath), err)
		}
	}

	if err := i.registry.remove(themeID); err != nil {
		return types.IOError("failed to remove registry entry", err)
	}

	i.logger.Info("theme uninstalled", zap.String("theme_id", themeID))
	return nil
}

func (i *Installer) Lookup(themeID string) (*Record, error) {
	if err := pathutil.ValidateID(themeID); err != nil {
		return nil, err
	}

	return i.registry.read(themeID)
}

// Installed lists registry entries whose install folder still exists.
func (i *Installer) Installed() ([]*Record, error) {
	records, err := i.registry.list()
	if err != nil {
		return nil, err
	}

	live := records[:0]
	for _, rec := range records {
		if !pathutil.PathExists(rec.InstallPath) {
			i.logger.Warn("registry entry without install folder", zap.String("theme_id", rec.ThemeID))
			continue
		}
		live = append(live, rec)
	}

	return live, nil
}

// Region reports the console region from the configured menu title ID.
func (i *Installer) Region() Region {
	return ResolveRegion(i.opts.MenuTitleID)
}
