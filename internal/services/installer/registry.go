package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cozy-creator/theme-manager/internal/utils/jsonutil"
)

var ErrNotInstalled = errors.New("theme is not installed")

// Record is the registry entry kept for each installed theme.
type Record struct {
	ThemeID      string `json:"themeID"`
	ThemeName    string `json:"themeName"`
	ThemeAuthor  string `json:"themeAuthor"`
	InstallPath  string `json:"installPath"`
	PatchedFiles int    `json:"patchedFiles"`
}

// FolderName is the theme folder's name, which is what the plugin config
// refers to.
func (r *Record) FolderName() string {
	return filepath.Base(r.InstallPath)
}

type registry struct {
	dir string
}

func (r *registry) path(themeID string) string {
	return filepath.Join(r.dir, themeID+".json")
}

func (r *registry) write(rec *Record) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	return jsonutil.WriteFile(r.path(rec.ThemeID), rec)
}

func (r *registry) read(themeID string) (*Record, error) {
	rec := &Record{}
	if err := jsonutil.ReadFile(r.path(themeID), rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotInstalled
		}
		return nil, fmt.Errorf("failed to read registry entry %s: %w", themeID, err)
	}

	return rec, nil
}

func (r *registry) remove(themeID string) error {
	if err := os.Remove(r.path(themeID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func (r *registry) list() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		rec, err := r.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ThemeName < records[j].ThemeName
	})

	return records, nil
}
