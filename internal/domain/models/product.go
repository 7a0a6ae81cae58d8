package models

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"
)

// RemoteProduct представляет товар удаленного каталога в одной локали.
// Raw хранит тело конверта {product: ...} как есть, поля читаются по путям gjson
type RemoteProduct struct {
	ID       int64           `json:"id"`
	Language string          `json:"language"`
	Raw      json.RawMessage `json:"raw"`
}

// Get возвращает значение по пути вида "brand.resource.id"
func (p *RemoteProduct) Get(path string) gjson.Result {
	if p == nil || len(p.Raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.Raw, path)
}

// RemoteVariant представляет вариант товара удаленного каталога
type RemoteVariant struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	EAN       string          `json:"ean,omitempty"`
	Title     string          `json:"title,omitempty"`
	Raw       json.RawMessage `json:"raw"`
}

// Get возвращает значение по пути gjson
func (v *RemoteVariant) Get(path string) gjson.Result {
	if v == nil || len(v.Raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(v.Raw, path)
}

// RemoteImage изображение, прикрепленное к товару
type RemoteImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

// Reference элемент справочника (бренд, поставщик)
type Reference struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// RemoteSnapshot состояние товара в удаленном каталоге на момент сравнения
type RemoteSnapshot struct {
	Variant *RemoteVariant `json:"variant,omitempty"`
	// Products - данные товара, полученные отдельным запросом на каждую локаль
	Products     map[string]*RemoteProduct `json:"products,omitempty"`
	BaseLanguage string                    `json:"base_language,omitempty"`
	BrandName    string                    `json:"brand_name,omitempty"`
	SupplierName string                    `json:"supplier_name,omitempty"`
}

// ProductID возвращает идентификатор товара из варианта или любой загруженной локали
func (s *RemoteSnapshot) ProductID() int64 {
	if s == nil {
		return 0
	}
	if s.Variant != nil && s.Variant.ProductID != 0 {
		return s.Variant.ProductID
	}
	for _, lang := range s.Languages() {
		if p := s.Products[lang]; p != nil && p.ID != 0 {
			return p.ID
		}
	}
	return 0
}

// Product возвращает данные товара в локали lang
func (s *RemoteSnapshot) Product(lang string) *RemoteProduct {
	if s == nil || s.Products == nil {
		return nil
	}
	return s.Products[lang]
}

// BaseProduct возвращает товар в базовой локали, иначе первую загруженную
func (s *RemoteSnapshot) BaseProduct() *RemoteProduct {
	if p := s.Product(s.baseLanguage()); p != nil {
		return p
	}
	for _, lang := range s.Languages() {
		if p := s.Products[lang]; p != nil {
			return p
		}
	}
	return nil
}

// Languages возвращает загруженные локали: базовая первой, остальные по алфавиту
func (s *RemoteSnapshot) Languages() []string {
	if s == nil {
		return nil
	}
	base := s.baseLanguage()
	langs := make([]string, 0, len(s.Products))
	for lang := range s.Products {
		if lang != base {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	if _, ok := s.Products[base]; ok {
		langs = append([]string{base}, langs...)
	}
	return langs
}

func (s *RemoteSnapshot) baseLanguage() string {
	if s.BaseLanguage == "" {
		return DefaultLanguage
	}
	return s.BaseLanguage
}

// DefaultLanguage базовая локаль удаленного каталога
const DefaultLanguage = "nl"
