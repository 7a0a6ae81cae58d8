package pim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxImageBytes предел размера одного изображения
const DefaultMaxImageBytes = 20 << 20

// Downloader скачивает изображения по ссылкам из фида
type Downloader struct {
	http     *http.Client
	maxBytes int64
}

func NewDownloader(timeout time.Duration, maxRedirects int, maxBytes int64) *Downloader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Downloader{http: newHTTPClient(timeout, maxRedirects), maxBytes: maxBytes}
}

func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image %s responded with status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", url, d.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", url)
	}
	return data, nil
}
