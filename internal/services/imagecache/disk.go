package imagecache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cozy-creator/theme-manager/internal/utils/hashutil"

	"github.com/vmihailenco/msgpack/v5"
)

const metaExt = ".meta"

// DiskEntry describes one persisted locator; it is stored next to the data
// file as msgpack.
type DiskEntry struct {
	Locator  string    `msgpack:"locator"`
	MIME     string    `msgpack:"mime"`
	Size     int64     `msgpack:"size"`
	StoredAt time.Time `msgpack:"stored_at"`
}

type diskStore struct {
	dir string
}

func newDiskStore(dir string) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image cache directory: %w", err)
	}

	return &diskStore{dir: dir}, nil
}

// path derives the on-disk location from the locator hash, fanned out by the
// first two hex digits.
func (s *diskStore) path(locator string) string {
	hash := hashutil.Blake3String(locator)
	return filepath.Join(s.dir, hash[:2], hash)
}

func (s *diskStore) write(locator string, data []byte) error {
	dest := s.path(locator)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	_, mime := Sniff(data)
	meta, err := msgpack.Marshal(&DiskEntry{
		Locator:  locator,
		MIME:     mime,
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}

	return os.WriteFile(dest+metaExt, meta, 0644)
}

func (s *diskStore) read(locator string) ([]byte, error) {
	return os.ReadFile(s.path(locator))
}

func (s *diskStore) exists(locator string) bool {
	_, err := os.Stat(s.path(locator))
	return err == nil
}

func (s *diskStore) remove(locator string) error {
	dest := s.path(locator)
	for _, p := range []string{dest, dest + metaExt} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

func (s *diskStore) entries() ([]DiskEntry, error) {
	var entries []DiskEntry
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, metaExt) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var entry DiskEntry
		if err := msgpack.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		entries = append(entries, entry)
		return nil
	})

	return entries, err
}

func (s *diskStore) clear() error {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, item := range items {
		if err := os.RemoveAll(filepath.Join(s.dir, item.Name())); err != nil {
			return err
		}
	}

	return nil
}
