package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/tidwall/gjson"
)

// FieldInfo удаленное поле, доступное как цель маппинга
type FieldInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Lang     string `json:"lang,omitempty"`
	Category string `json:"category"`
}

const maxFieldDepth = 4

// служебные поля, которые не имеет смысла маппить
var skippedFields = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true, "url": true,
}

// DiscoverFields получает один товар и его первый вариант в каждой локали
// и возвращает плоские пути полей
func (o *Orchestrator) DiscoverFields(ctx context.Context) ([]FieldInfo, error) {
	base := o.opts.BaseLanguage
	products, err := o.catalog.ListProducts(ctx, base, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		return []FieldInfo{}, nil
	}
	productID := products[0].ID

	seen := make(map[string]bool)
	var out []FieldInfo
	add := func(f mapping.Field) {
		if f.IsImages() || seen[f.Key()] {
			return
		}
		seen[f.Key()] = true
		out = append(out, FieldInfo{Key: f.Key(), Label: f.Label(), Lang: f.Language, Category: string(f.Namespace)})
	}

	for _, lang := range o.languages(nil) {
		if err := o.pause(ctx, o.opts.ListDelay); err != nil {
			return nil, err
		}
		p, err := o.catalog.GetProduct(ctx, lang, productID)
		if err != nil {
			o.logger.WarnWithContext(ctx, "Локаль недоступна при получении полей",
				interfaces.LogField{Key: "lang", Value: lang},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			continue
		}
		for _, path := range flatten(gjson.ParseBytes(p.Raw), "", 0) {
			add(mapping.Field{Namespace: mapping.NamespaceProduct, Path: path, Language: lang})
		}
	}
	add(mapping.Field{Namespace: mapping.NamespaceProduct, Path: mapping.PathBrand})
	add(mapping.Field{Namespace: mapping.NamespaceProduct, Path: mapping.PathSupplier})
	add(mapping.Field{Namespace: mapping.NamespaceProduct, Path: mapping.PathImages})

	variants, err := o.catalog.ListProductVariants(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product variants: %w", err)
	}
	if len(variants) > 0 {
		for _, path := range flatten(gjson.ParseBytes(variants[0].Raw), "", 0) {
			add(mapping.Field{Namespace: mapping.NamespaceVariant, Path: path})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// flatten возвращает пути скалярных значений объекта; ссылки на ресурсы не раскрываются
func flatten(r gjson.Result, prefix string, depth int) []string {
	var paths []string
	r.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if skippedFields[name] || strings.ContainsAny(name, ".*?") {
			return true
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch {
		case v.IsObject() && name == "resource":
		case v.IsObject() && depth < maxFieldDepth:
			paths = append(paths, flatten(v, path, depth+1)...)
		case !v.IsObject():
			paths = append(paths, path)
		}
		return true
	})
	return paths
}
