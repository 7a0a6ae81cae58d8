// Package lightspeed клиент REST API удаленного каталога (api.webshopapp.com)
package lightspeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.webshopapp.com"

// Config параметры клиента
type Config struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	DefaultLanguage string
	Timeout         time.Duration
	// RateLimit - запросов в секунду, RateBurst - размер пачки
	RateLimit       float64
	RateBurst       int
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// Client реализует ports.CatalogPort поверх HTTP
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  interfaces.LoggerPort
}

// NewClient создает клиента. Пустые ключи API - ошибка ErrValidationMissing
func NewClient(cfg Config, logger interfaces.LoggerPort) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: lightspeed api key and secret", utils.ErrValidationMissing)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "nl"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// DefaultLanguage базовая локаль клиента
func (c *Client) DefaultLanguage() string {
	return c.cfg.DefaultLanguage
}

func (c *Client) endpoint(lang, path string, query url.Values) string {
	if lang == "" {
		lang = c.cfg.DefaultLanguage
	}
	u := c.cfg.BaseURL + "/" + lang + "/" + strings.TrimLeft(path, "/") + ".json"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do выполняет запрос с ограничением частоты и повтором 429/5xx (POST только 429)
func (c *Client) do(ctx context.Context, method, lang, path string, query url.Values, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	endpoint := c.endpoint(lang, path, query)
	resource := resourceOf(path)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RemoteRetries.WithLabelValues(resource).Inc()
			delay := c.backoff(attempt, lastErr)
			c.logger.WarnWithContext(ctx, "Повтор запроса к удаленному каталогу",
				interfaces.LogField{Key: "method", Value: method},
				interfaces.LogField{Key: "url", Value: endpoint},
				interfaces.LogField{Key: "attempt", Value: attempt},
				interfaces.LogField{Key: "delay", Value: delay.String()},
				interfaces.LogField{Key: "error", Value: lastErr.Error()},
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, err := c.send(ctx, method, endpoint, resource, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldRetry(method, err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// shouldRetry POST создает объект: повторяется только после 429, когда запрос
// заведомо не обработан. Сетевая ошибка и 5xx на POST возвращаются вызывающему
func shouldRetry(method string, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if method == http.MethodPost {
			return apiErr.StatusCode == http.StatusTooManyRequests
		}
		return apiErr.Retryable()
	}
	return method != http.MethodPost
}

func (c *Client) send(ctx context.Context, method, endpoint, resource string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteDuration.WithLabelValues(method, resource).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(method, resource, "network").Inc()
		return nil, fmt.Errorf("%w: %s %s: %v", utils.ErrRemoteUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(method, resource, "network").Inc()
		return nil, fmt.Errorf("%w: read body: %v", utils.ErrRemoteUnavailable, err)
	}
	metrics.RemoteRequests.WithLabelValues(method, resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return nil, &retryAfterError{APIError: apiErr, after: parseRetryAfter(ra)}
		}
		return nil, apiErr
	}
	return data, nil
}

// retryAfterError хранит задержку из заголовка Retry-After
type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	var ra *retryAfterError
	if errors.As(lastErr, &ra) && ra.after > 0 {
		if ra.after > c.cfg.MaxRetryBackoff {
			return c.cfg.MaxRetryBackoff
		}
		return ra.after
	}
	d := time.Duration(float64(c.cfg.RetryBackoff) * math.Pow(2, float64(attempt-1)))
	if d > c.cfg.MaxRetryBackoff {
		d = c.cfg.MaxRetryBackoff
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func resourceOf(path string) string {
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
