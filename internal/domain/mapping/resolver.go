package mapping

import (
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/tidwall/gjson"
)

// Resolved пара значений PIM и удаленного каталога для одной записи маппинга
type Resolved struct {
	Key         string
	Field       Field
	PIMField    string
	PIMValue    string
	RemoteValue string
}

// Extract извлекает значения обеих сторон для всех записей маппинга.
// Поле изображений пропускается: им занимается только сверка изображений
func Extract(rec models.PIMRecord, snapshot *models.RemoteSnapshot, m *Mapping) []Resolved {
	if m == nil {
		return nil
	}
	out := make([]Resolved, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Field.IsImages() {
			continue
		}
		out = append(out, Resolved{
			Key:         e.Field.Key(),
			Field:       e.Field,
			PIMField:    e.PIMField,
			PIMValue:    rec.Value(e.PIMField),
			RemoteValue: RemoteValue(snapshot, e.Field),
		})
	}
	return out
}

// RemoteValue читает значение удаленного поля из снимка
func RemoteValue(snapshot *models.RemoteSnapshot, f Field) string {
	if snapshot == nil {
		return ""
	}
	switch f.Namespace {
	case NamespaceVariant:
		return Text(snapshot.Variant.Get(f.Path), "")
	case NamespaceProduct:
		switch {
		case f.IsBrand():
			return referenceName(snapshot.BrandName, snapshot.BaseProduct(), "brand")
		case f.IsSupplier():
			return referenceName(snapshot.SupplierName, snapshot.BaseProduct(), "supplier")
		case f.Language != "":
			// только запрошенная локаль, без подстановки базовой
			return Text(snapshot.Product(f.Language).Get(f.Path), f.Language)
		default:
			return localeFallback(snapshot, f.Path)
		}
	}
	return ""
}

// localeFallback: базовая локаль, затем любая загруженная, затем сырое поле
func localeFallback(snapshot *models.RemoteSnapshot, path string) string {
	for _, lang := range snapshot.Languages() {
		if v := Text(snapshot.Product(lang).Get(path), lang); v != "" {
			return v
		}
	}
	if base := snapshot.BaseProduct(); base != nil {
		return rawText(base.Get(path))
	}
	return ""
}

func referenceName(resolved string, product *models.RemoteProduct, prefix string) string {
	if resolved != "" {
		return resolved
	}
	for _, path := range []string{prefix + ".title", prefix + ".name", prefix + ".resource.embedded.title"} {
		if v := Text(product.Get(path), ""); v != "" {
			return v
		}
	}
	return ""
}

// Text приводит значение к строке. Объект (например, значения по языкам) разрешается
// в порядке: запрошенный язык, базовая локаль, первое значение, текстовый вид
func Text(r gjson.Result, lang string) string {
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return ""
	case r.IsObject():
		return collectionText(r, lang)
	case r.IsArray():
		parts := make([]string, 0)
		r.ForEach(func(_, v gjson.Result) bool {
			if s := Text(v, lang); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		return strings.Join(parts, ",")
	case r.Type == gjson.Number:
		return r.Raw
	default:
		return r.String()
	}
}

func collectionText(r gjson.Result, lang string) string {
	if lang != "" {
		if v, ok := keyFold(r, lang); ok {
			return Text(v, lang)
		}
	}
	if v, ok := keyFold(r, models.DefaultLanguage); ok {
		return Text(v, models.DefaultLanguage)
	}

	var first gjson.Result
	found := false
	r.ForEach(func(_, v gjson.Result) bool {
		first, found = v, true
		return false
	})
	if found {
		return Text(first, lang)
	}
	return rawText(r)
}

// keyFold ищет ключ объекта без учета регистра
func keyFold(r gjson.Result, key string) (gjson.Result, bool) {
	var out gjson.Result
	found := false
	r.ForEach(func(k, v gjson.Result) bool {
		if strings.EqualFold(k.String(), key) {
			out, found = v, true
			return false
		}
		return true
	})
	return out, found
}

func rawText(r gjson.Result) string {
	raw := strings.TrimSpace(r.Raw)
	switch raw {
	case "", "null", "{}", "[]":
		return ""
	}
	if r.Type == gjson.String {
		return r.Str
	}
	return raw
}
