package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/jsonutil"
	"github.com/cozy-creator/theme-manager/internal/utils/pathutil"

	"go.uber.org/zap"
)

const activeThemeKey = "active-theme"

var ErrThemeNotFound = errors.New("theme not found")

// Activate points the plugin config's active-theme field at the theme's
// folder name.
func (i *Installer) Activate(themeID string) (string, error) {
	if err := pathutil.ValidateID(themeID); err != nil {
		return "", err
	}

	folder, err := i.resolveFolder(themeID)
	if err != nil {
		return "", err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	data, err := os.ReadFile(i.opts.PluginConfig)
	if err != nil {
		return "", types.ConfigError("failed to read plugin config", err)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", types.ConfigError("failed to parse plugin config", err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	cfg[activeThemeKey] = folder

	if i.opts.AtomicConfigWrite {
		err = writeFileAtomic(i.opts.PluginConfig, cfg)
	} else {
		err = jsonutil.WriteFile(i.opts.PluginConfig, cfg)
	}
	if err != nil {
		return "", types.ConfigError("failed to write plugin config", err)
	}

	i.logger.Info("theme activated", zap.String("theme_id", themeID), zap.String("folder", folder))
	return folder, nil
}

// ActiveTheme returns the folder name the plugin config currently selects.
func (i *Installer) ActiveTheme() (string, error) {
	cfg := map[string]any{}
	if err := jsonutil.ReadFile(i.opts.PluginConfig, &cfg); err != nil {
		return "", types.ConfigError("failed to read plugin config", err)
	}

	active, _ := cfg[activeThemeKey].(string)
	return active, nil
}

func (i *Installer) resolveFolder(themeID string) (string, error) {
	rec, err := i.registry.read(themeID)
	if err == nil {
		return rec.FolderName(), nil
	}
	if !errors.Is(err, ErrNotInstalled) {
		i.logger.Warn("unreadable registry entry, scanning themes", zap.String("theme_id", themeID), zap.Error(err))
	}

	entries, err := os.ReadDir(i.opts.ThemesDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrThemeNotFound, themeID)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		var meta types.ThemeMetadata
		path := filepath.Join(i.opts.ThemesDir, entry.Name(), types.ThemeMetadataFile)
		if err := jsonutil.ReadFile(path, &meta); err != nil {
			continue
		}
		if meta.ID == themeID {
			return entry.Name(), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrThemeNotFound, themeID)
}

func writeFileAtomic(path string, source any) error {
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}
