package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"golang.org/x/text/language"
)

// Namespace область удаленного поля
type Namespace string

const (
	NamespaceProduct Namespace = "product"
	NamespaceVariant Namespace = "variant"
)

// Пути полей, обрабатываемых особым образом
const (
	PathImages   = "images.resource.url"
	PathBrand    = "brand.title"
	PathSupplier = "supplier.title"
)

var langSuffix = regexp.MustCompile(`\s*\(([A-Za-z]{2,3})\)\s*$`)

// Field разобранное удаленное поле вида "Product: description (EN)"
type Field struct {
	Namespace Namespace
	Path      string
	// Language - базовый код языка в нижнем регистре, пусто для полей без локали
	Language string
	Raw      string
}

// ParseField разбирает строку удаленного поля
func ParseField(raw string) (Field, error) {
	s := strings.TrimSpace(raw)
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Field{}, fmt.Errorf("%w: %q has no namespace", utils.ErrInvalidMapping, raw)
	}

	f := Field{Raw: s}
	switch strings.ToLower(strings.TrimSpace(prefix)) {
	case string(NamespaceProduct):
		f.Namespace = NamespaceProduct
	case string(NamespaceVariant):
		f.Namespace = NamespaceVariant
	default:
		return Field{}, fmt.Errorf("%w: %q has unknown namespace %q", utils.ErrInvalidMapping, raw, prefix)
	}

	rest = strings.TrimSpace(rest)
	if m := langSuffix.FindStringSubmatch(rest); m != nil {
		base, err := language.ParseBase(strings.ToLower(m[1]))
		if err != nil {
			return Field{}, fmt.Errorf("%w: %q has invalid language tag: %v", utils.ErrInvalidMapping, raw, err)
		}
		f.Language = base.String()
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	}

	if rest == "" {
		return Field{}, fmt.Errorf("%w: %q has empty field path", utils.ErrInvalidMapping, raw)
	}
	f.Path = rest
	return f, nil
}

// Key уникальный ключ поля: "product.title (en)", "variant.priceIncl"
func (f Field) Key() string {
	key := string(f.Namespace) + "." + f.Path
	if f.Language != "" {
		key += " (" + f.Language + ")"
	}
	return key
}

// Label подпись поля в исходном формате маппинга
func (f Field) Label() string {
	label := strings.ToUpper(string(f.Namespace[:1])) + string(f.Namespace[1:]) + ": " + f.Path
	if f.Language != "" {
		label += " (" + strings.ToUpper(f.Language) + ")"
	}
	return label
}

// IsImages поле списка изображений, обрабатывается только сверкой изображений
func (f Field) IsImages() bool {
	return f.Namespace == NamespaceProduct && f.Path == PathImages
}

// IsBrand поле имени бренда товара
func (f Field) IsBrand() bool {
	return f.Namespace == NamespaceProduct && isOneOf(f.Path, PathBrand, "brand", "brandTitle", "brand.name", "brandName")
}

// IsSupplier поле имени поставщика товара
func (f Field) IsSupplier() bool {
	return f.Namespace == NamespaceProduct && isOneOf(f.Path, PathSupplier, "supplier", "supplierTitle", "supplier.name", "supplierName")
}

// IsReference поля, исключаемые из сравнения: имена бренда и поставщика и изображения
func (f Field) IsReference() bool {
	if f.IsImages() {
		return true
	}
	return f.Namespace == NamespaceProduct && (f.Path == PathBrand || f.Path == PathSupplier)
}

func isOneOf(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}

// ParseKey разбирает ключ вида "product.title (en)" обратно в поле
func ParseKey(key string) (Field, error) {
	ns, rest, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok {
		return Field{}, fmt.Errorf("%w: key %q has no namespace", utils.ErrInvalidMapping, key)
	}
	return ParseField(ns + ": " + rest)
}
