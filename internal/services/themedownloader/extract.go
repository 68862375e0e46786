package themedownloader

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/pathutil"
)

// extract walks the archive's directory table in order, streaming each file
// to disk in ChunkSize pieces. Progress covers [downloadShare, 1].
func (j *Job) extract(token *CancelToken, archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return types.ArchiveError("failed to open archive", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return types.IOError("failed to create theme directory", err)
	}

	var total uint64
	for _, f := range zr.File {
		total += f.UncompressedSize64
	}

	buf := make([]byte, j.opts.ChunkSize)
	var written uint64
	for i, f := range zr.File {
		if token.Cancelled() {
			return errCancelled
		}

		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !pathutil.Within(dest, target) {
			return types.ArchiveError(fmt.Sprintf("illegal entry path %q", f.Name), nil)
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return types.IOError("failed to create directory", err)
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return types.IOError("failed to create directory", err)
			}
			if err := extractFile(f, target, buf); err != nil {
				return err
			}
		}

		written += f.UncompressedSize64
		share := float64(i+1) / float64(len(zr.File))
		if total > 0 {
			share = float64(written) / float64(total)
		}
		j.progress.Store(downloadShare + (1-downloadShare)*share)
	}

	return nil
}

func extractFile(f *zip.File, target string, buf []byte) error {
	rc, err := f.Open()
	if err != nil {
		return types.ArchiveError(fmt.Sprintf("failed to open entry %q", f.Name), err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return types.IOError("failed to create file", err)
	}
	defer out.Close()

	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return types.IOError(fmt.Sprintf("failed to write %s", target), werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return types.ArchiveError(fmt.Sprintf("failed to read entry %q", f.Name), rerr)
		}
	}

	if err := out.Close(); err != nil {
		return types.IOError(fmt.Sprintf("failed to write %s", target), err)
	}

	return nil
}
