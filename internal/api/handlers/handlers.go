package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/go-chi/render"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	SKU     string `json:"sku,omitempty"`
	// Details тело ответа удаленного API
	Details string `json:"details,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data, meta interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{Success: true, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, sku, details string) {
	status, code := statusFor(err)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:   code,
		Code:    status,
		Message: err.Error(),
		SKU:     sku,
		Details: details,
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{
		Error:   "bad_request",
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

// statusFor отображает таксономию ошибок на HTTP статус
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, utils.ErrValidationMissing),
		errors.Is(err, utils.ErrInvalidMapping),
		errors.Is(err, utils.ErrAmbiguousMapping),
		errors.Is(err, utils.ErrNotCSV):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, utils.ErrNotFound), errors.Is(err, utils.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, utils.ErrRemoteRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, utils.ErrRemoteUnavailable):
		return http.StatusBadGateway, "remote_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeResult пишет результат операции над SKU. Неуспешный результат
// становится errorResponse с SKU и телом ответа удаленного API
func writeResult(w http.ResponseWriter, r *http.Request, res *models.SyncResult) {
	switch res.Status {
	case models.StatusFailed, models.StatusConflict:
		err := res.Err()
		if err == nil {
			err = errors.New(res.Error)
		}
		writeError(w, r, err, res.SKU, res.Details)
	case models.StatusProductCreated, models.StatusVariantCreated, models.StatusCreated:
		writeData(w, r, http.StatusCreated, res, nil)
	default:
		writeData(w, r, http.StatusOK, res, nil)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", utils.ErrValidationMissing, err)
	}
	return nil
}
