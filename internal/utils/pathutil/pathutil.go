package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxNameLen = 64

var ErrInvalidID = errors.New("invalid theme id")

// ExpandPath expands the path using the user's home directory.
// If the path starts with "~", it is replaced with the user's home directory.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		// Replace "~" with the home directory path
		path = filepath.Join(homeDir, path[1:])
	}

	return path, nil
}

// SanitizeName turns a display name into something safe to use as a single
// path component on FAT-formatted storage.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimRight(b.String(), ". ")
	if len(out) > maxNameLen {
		cut := maxNameLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], ". ")
	}
	if out == "" {
		out = "theme"
	}

	return out
}

// ValidateID rejects theme ids that cannot be used verbatim as a single
// path component.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.ContainsAny(id, `/\:`), strings.Contains(id, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}

	return nil
}

// ThemeFolderName is the directory name an extracted theme lives under.
func ThemeFolderName(name, themeID string) string {
	return fmt.Sprintf("%s [%s]", SanitizeName(name), themeID)
}

// Within reports whether target resolves to a location inside root.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
