package lightspeed

import (
	"encoding/json"
	"fmt"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/tidwall/gjson"
)

// decodeObject извлекает объект из конверта {key: {...}} или {data: {...}}
func decodeObject(body []byte, key string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid json", utils.ErrUnexpectedEnvelope)
	}
	root := gjson.ParseBytes(body)
	for _, k := range []string{key, "data"} {
		if v := root.Get(k); v.IsObject() {
			return v, nil
		}
	}
	return gjson.Result{}, fmt.Errorf("%w: no %q object", utils.ErrUnexpectedEnvelope, key)
}

// decodeList извлекает массив из конверта {keys[i]: [...]}, {data: [...]} или корневого массива
func decodeList(body []byte, keys ...string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", utils.ErrUnexpectedEnvelope)
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array(), nil
	}
	for _, k := range append(keys, "data") {
		v := root.Get(k)
		if v.IsArray() {
			return v.Array(), nil
		}
		// пустой список иногда приходит как false или {}
		if v.Exists() && (v.Type == gjson.False || v.Type == gjson.Null || (v.IsObject() && len(v.Map()) == 0)) {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w: no %v list", utils.ErrUnexpectedEnvelope, keys)
}

func firstInt(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Int() != 0 {
			return v.Int()
		}
	}
	return 0
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseVariant(r gjson.Result) *models.RemoteVariant {
	return &models.RemoteVariant{
		ID:        r.Get("id").Int(),
		ProductID: firstInt(r, "product.resource.id", "product.id", "product_id"),
		SKU:       r.Get("sku").String(),
		EAN:       r.Get("ean").String(),
		Title:     r.Get("title").String(),
		Raw:       json.RawMessage(r.Raw),
	}
}

func parseProduct(r gjson.Result, lang string) *models.RemoteProduct {
	return &models.RemoteProduct{
		ID:       r.Get("id").Int(),
		Language: lang,
		Raw:      json.RawMessage(r.Raw),
	}
}

func parseReference(r gjson.Result) models.Reference {
	return models.Reference{
		ID:    r.Get("id").Int(),
		Title: firstString(r, "title", "name"),
	}
}

func parseImage(r gjson.Result) models.RemoteImage {
	return models.RemoteImage{
		ID:  firstInt(r, "id", "imageId"),
		Src: firstString(r, "src", "url"),
	}
}
