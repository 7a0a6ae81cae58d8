package services

import (
	"context"

	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// WithRun привязывает прогон импорта к контексту: вложенные операции пишут
// элементы в него и не открывают собственный прогон
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, interfaces.RunIDKey, runID)
}

// RunFromContext возвращает id прогона из контекста
func RunFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(interfaces.RunIDKey).(string)
	return runID, ok && runID != ""
}

func withSKU(ctx context.Context, sku string) context.Context {
	return context.WithValue(ctx, interfaces.SKUKey, sku)
}
