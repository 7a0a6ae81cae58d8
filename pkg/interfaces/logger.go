package interfaces

import "context"

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// Ключи контекста, значения которых логгер добавляет в записи *WithContext
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	TraceIDKey   ContextKey = "trace_id"
	RunIDKey     ContextKey = "run_id"
	SKUKey       ContextKey = "sku"
)

// LoggerPort определяет интерфейс для системы логирования
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Fatal логирует сообщение и завершает процесс
	Fatal(msg string, args ...interface{})

	// Методы с контекстом дополняют запись полями request_id, trace_id, run_id и sku
	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает новый логгер с добавленными полями
	WithFields(fields ...LogField) LoggerPort
	// WithField возвращает новый логгер с добавленным полем
	WithField(key string, value interface{}) LoggerPort

	SetLevel(level LogLevel)
	GetLevel() LogLevel

	// Sync сбрасывает буферы логгера
	Sync() error
}
