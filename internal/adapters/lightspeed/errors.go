package lightspeed

import (
	"fmt"
	"net/http"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
)

// APIError ответ удаленного API с неуспешным статусом
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lightspeed %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 512))
}

// Unwrap сводит статус к ошибкам из utils, чтобы работал errors.Is
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return utils.ErrRemoteRateLimited
	case e.StatusCode >= 500:
		return utils.ErrRemoteUnavailable
	case e.StatusCode == http.StatusNotFound:
		return utils.ErrNotFound
	}
	return nil
}

// Retryable 429 и 5xx повторяются с задержкой
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ResponseBody тело ответа для деталей ошибки в результате синхронизации
func (e *APIError) ResponseBody() string {
	return e.Body
}
