// Package pim чтение фида PIM и загрузка изображений по ссылкам из него
package pim

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 5
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FeedConfig параметры загрузки фида
type FeedConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	// Encoding кодировка фида: "utf-8" (по умолчанию) или "windows-1251"
	Encoding string
}

// FeedClient загружает CSV фид PIM по HTTP
type FeedClient struct {
	http     *http.Client
	encoding string
	logger   interfaces.LoggerPort
}

func NewFeedClient(cfg FeedConfig, logger interfaces.LoggerPort) *FeedClient {
	return &FeedClient{
		http:     newHTTPClient(cfg.Timeout, cfg.MaxRedirects),
		encoding: strings.ToLower(strings.TrimSpace(cfg.Encoding)),
		logger:   logger,
	}
}

func newHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Fetch загружает и разбирает фид. HTML вместо CSV - utils.ErrNotCSV
func (c *FeedClient) Fetch(ctx context.Context, url string) ([]models.PIMRecord, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: feed url", utils.ErrValidationMissing)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed responded with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
		return nil, utils.ErrNotCSV
	}

	records, err := c.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.logger.InfoWithContext(ctx, "Фид PIM загружен",
		interfaces.LogField{Key: "records", Value: len(records)},
		interfaces.LogField{Key: "bytes", Value: len(body)},
		interfaces.LogField{Key: "duration", Value: time.Since(start).String()},
	)
	return records, nil
}

// Parse разбирает CSV с разделителем ";" и строкой заголовка
func (c *FeedClient) Parse(r io.Reader) ([]models.PIMRecord, error) {
	if c.encoding == "windows-1251" || c.encoding == "cp1251" {
		r = transform.NewReader(r, charmap.Windows1251.NewDecoder())
	}
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []models.PIMRecord{}, nil
		}
		return nil, fmt.Errorf("csv header read error: %w", err)
	}
	if len(header) > 0 {
		header[0] = string(bytes.TrimPrefix([]byte(header[0]), utf8BOM))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := make([]models.PIMRecord, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d read error: %w", line, err)
		}
		if isBlank(row) {
			continue
		}
		rec := make(models.PIMRecord, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM)))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
