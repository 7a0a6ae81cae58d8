// Package diff сравнивает запись PIM с состоянием удаленного каталога
package diff

import (
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
)

// Engine вычисляет расхождения полей. Не имеет побочных эффектов
type Engine struct {
	policy *bluemonday.Policy
}

// NewEngine создает движок сравнения
func NewEngine() *Engine {
	return &Engine{policy: bluemonday.StrictPolicy()}
}

// Compute возвращает расхождения по уже разрешенным значениям.
// Ссылочные поля (бренд, поставщик, изображения) в результат не попадают
func (e *Engine) Compute(resolved []mapping.Resolved) []models.DiffEntry {
	out := make([]models.DiffEntry, 0)
	for _, r := range resolved {
		if r.Field.IsReference() {
			continue
		}
		if e.Equal(r.PIMValue, r.RemoteValue) {
			continue
		}
		out = append(out, models.DiffEntry{
			Key:         r.Key,
			PIMValue:    r.PIMValue,
			RemoteValue: r.RemoteValue,
			SourceField: r.PIMField,
		})
	}
	return out
}

// Compare извлекает значения по маппингу и сравнивает запись со снимком
func (e *Engine) Compare(rec models.PIMRecord, snapshot *models.RemoteSnapshot, m *mapping.Mapping) []models.DiffEntry {
	return e.Compute(mapping.Extract(rec, snapshot, m))
}

// Equal сравнивает два значения: пустые равны, числа сравниваются как числа,
// строки без HTML
func (e *Engine) Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" && b == "" {
		return true
	}

	if fa, okA := parseNumber(a); okA {
		if fb, okB := parseNumber(b); okB {
			return fa == fb
		}
	}

	return e.normalize(a) == e.normalize(b)
}

func (e *Engine) normalize(s string) string {
	return strings.TrimSpace(html.UnescapeString(e.policy.Sanitize(s)))
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
