package services

import (
	"context"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// Текстовые поля товара, которые удаленный каталог копирует из базовой локали, если они пусты
var contentKeys = []string{"title", "fulltitle", "description", "content"}

// Допустимые поля варианта помимо sku и title
var variantFields = []string{
	"priceIncl", "priceExcl", "priceCost", "ean", "weightValue", "volumeValue",
	"oldPriceIncl", "oldPriceExcl", "articleCode",
}

// productPlan данные товара из записи PIM, разложенные по локалям
type productPlan struct {
	shared     map[string]interface{}
	locales    map[string]map[string]interface{}
	explicit   map[string]bool
	brandID    int64
	supplierID int64
	images     []string
}

func (o *Orchestrator) planProduct(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *productPlan {
	plan := &productPlan{
		shared:   make(map[string]interface{}),
		locales:  make(map[string]map[string]interface{}),
		explicit: make(map[string]bool),
	}
	for _, e := range m.Namespace(mapping.NamespaceProduct) {
		f := e.Field
		if f.Language != "" && isOneOf(f.Path, contentKeys...) {
			plan.explicit[f.Language] = true
		}
		if f.IsImages() {
			plan.images = append(plan.images, images.SplitURLs(rec[e.PIMField])...)
			continue
		}

		value := rec.Value(e.PIMField)
		if value == "" {
			continue
		}
		switch {
		case f.IsBrand():
			plan.brandID = o.referenceID(ctx, models.Brands, value)
		case f.IsSupplier():
			plan.supplierID = o.referenceID(ctx, models.Suppliers, value)
		case f.Language != "":
			if plan.locales[f.Language] == nil {
				plan.locales[f.Language] = make(map[string]interface{})
			}
			setPath(plan.locales[f.Language], f.Path, value)
		default:
			setPath(plan.shared, f.Path, value)
		}
	}
	return plan
}

// basePayload тело создания товара в базовой локали
func (p *productPlan) basePayload(base string) map[string]interface{} {
	payload := make(map[string]interface{})
	for k, v := range p.locales[base] {
		payload[k] = v
	}
	for k, v := range p.shared {
		payload[k] = v
	}
	payload["visibility"] = "visible"
	payload["isVisible"] = true
	if p.brandID != 0 {
		payload["brand"] = map[string]interface{}{"resource": map[string]interface{}{"id": p.brandID}}
	}
	if p.supplierID != 0 {
		payload["supplier"] = map[string]interface{}{"resource": map[string]interface{}{"id": p.supplierID}}
	}
	return payload
}

// localePayload тело обновления локали. Без явного маппинга текстовые поля
// отправляются пустыми
func (p *productPlan) localePayload(lang string) map[string]interface{} {
	payload := make(map[string]interface{})
	for k, v := range p.locales[lang] {
		payload[k] = v
	}
	if !p.explicit[lang] {
		for _, k := range contentKeys {
			if _, ok := payload[k]; !ok {
				payload[k] = ""
			}
		}
	}
	return payload
}

// variantPayload тело создания или обновления варианта
func variantPayload(sku string, rec models.PIMRecord, m *mapping.Mapping, existingTitle string) map[string]interface{} {
	data := make(map[string]string)
	for _, e := range m.Namespace(mapping.NamespaceVariant) {
		if v := rec.Value(e.PIMField); v != "" {
			data[e.Field.Path] = v
		}
	}

	payload := map[string]interface{}{
		"sku":   sku,
		"title": firstNonEmpty(data["title"], existingTitle, "Default"),
	}
	for _, f := range variantFields {
		if v := data[f]; v != "" {
			payload[f] = v
		}
	}
	payload["articleCode"] = sku
	if data["weightValue"] != "" {
		payload["weightUnit"] = firstNonEmpty(data["weightUnit"], "g")
	}
	if data["volumeValue"] != "" {
		payload["volumeUnit"] = firstNonEmpty(data["volumeUnit"], "ml")
	}
	return payload
}

// referenceID ищет id бренда или поставщика по имени без учета регистра; 0 если не найден
func (o *Orchestrator) referenceID(ctx context.Context, kind models.DirectoryKind, name string) int64 {
	if o.directory == nil {
		return 0
	}
	id, ok, err := o.directory.FindReferenceID(ctx, kind, name)
	if err != nil {
		o.logger.WarnWithContext(ctx, "Ошибка поиска в справочнике",
			interfaces.LogField{Key: "kind", Value: string(kind)},
			interfaces.LogField{Key: "name", Value: name},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return 0
	}
	if !ok {
		o.logger.DebugWithContext(ctx, "Значение не найдено в справочнике",
			interfaces.LogField{Key: "kind", Value: string(kind)},
			interfaces.LogField{Key: "name", Value: name},
		)
	}
	return id
}

// setPath записывает значение по пути "a.b.c", создавая вложенные объекты
func setPath(m map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isOneOf(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
