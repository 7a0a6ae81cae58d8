package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
	ErrStorageUnknownDriver       = errors.New("unknown storage driver")
)

// ----------------- cache ------------------
var (
	ErrCacheMiss = errors.New("cache miss")
)

// ----------------- sync engine ------------------
var (
	// ErrNotFound SKU или удаленный ресурс не найден
	ErrNotFound = errors.New("not found")
	// ErrConflict SKU уже существует в удаленном каталоге
	ErrConflict = errors.New("sku already exists in remote catalog")
	// ErrRemoteRateLimited удаленный API ответил 429
	ErrRemoteRateLimited = errors.New("remote catalog rate limited")
	// ErrRemoteUnavailable удаленный API недоступен (5xx, сеть, таймаут)
	ErrRemoteUnavailable = errors.New("remote catalog unavailable")
	// ErrValidationMissing отсутствуют обязательные данные (ключи API, SKU, productId)
	ErrValidationMissing = errors.New("required value missing")
	// ErrPartialApply часть независимых изменений не применилась
	ErrPartialApply = errors.New("partial apply failure")
	// ErrUnexpectedEnvelope ответ API не содержит ожидаемого конверта
	ErrUnexpectedEnvelope = errors.New("unexpected response envelope")
)

// ----------------- mapping ------------------
var (
	ErrInvalidMapping   = errors.New("invalid attribute mapping")
	ErrAmbiguousMapping = errors.New("ambiguous attribute mapping")
)

// ----------------- audit ------------------
var (
	ErrRunNotFound        = errors.New("import run not found")
	ErrRunAlreadyFinished = errors.New("import run already finished")
)

// ----------------- pim feed ------------------
var (
	ErrNotCSV = errors.New("feed response is not CSV")
)
