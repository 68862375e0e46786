package themedownloader

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cozy-creator/theme-manager/internal/types"

	"go.uber.org/zap"
)

// progressReader reports bytes read and aborts the transfer as soon as the
// token is cancelled.
type progressReader struct {
	r        io.Reader
	token    *CancelToken
	read     int64
	total    int64
	progress func(read, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if p.token.Cancelled() {
		return 0, errCancelled
	}

	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.progress(p.read, p.total)
	}

	return n, err
}

func (j *Job) download(token *CancelToken, url, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return types.IOError("failed to create archive file", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(token.Context(), http.MethodGet, url, nil)
	if err != nil {
		return types.NetworkError(0, "invalid download url", err)
	}
	if j.opts.UserAgent != "" {
		req.Header.Set("User-Agent", j.opts.UserAgent)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		if token.Cancelled() {
			return errCancelled
		}
		return types.NetworkError(0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.NetworkError(resp.StatusCode, fmt.Sprintf("download failed with status %d", resp.StatusCode), nil)
	}

	j.logger.Debug("downloading archive",
		zap.String("url", url),
		zap.Int64("size", resp.ContentLength),
	)

	reader := &progressReader{
		r:     resp.Body,
		token: token,
		total: resp.ContentLength,
		progress: func(read, total int64) {
			if total > 0 {
				j.progress.Store(downloadShare * float64(read) / float64(total))
			}
		},
	}

	buf := make([]byte, j.opts.ChunkSize)
	if _, err := io.CopyBuffer(f, reader, buf); err != nil {
		if token.Cancelled() || errors.Is(err, errCancelled) {
			return errCancelled
		}
		return types.NetworkError(0, "read failed", err)
	}

	if reader.total > 0 && reader.read != reader.total {
		return types.NetworkError(0, fmt.Sprintf("download size mismatch: expected %d, got %d", reader.total, reader.read), nil)
	}

	if err := f.Close(); err != nil {
		return types.IOError("failed to write archive", err)
	}

	return nil
}
