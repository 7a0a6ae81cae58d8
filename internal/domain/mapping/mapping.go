package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"gopkg.in/yaml.v3"
)

// Entry одна запись маппинга: поле PIM -> удаленное поле
type Entry struct {
	PIMField string
	Field    Field
}

// Mapping упорядоченный маппинг атрибутов. Порядок объявления сохраняется
type Mapping struct {
	Entries []Entry
}

// FromPairs строит маппинг из пар [pimField, remoteField]. Пары с пустым удаленным
// полем пропускаются
func FromPairs(pairs [][2]string) (*Mapping, error) {
	m := &Mapping{}
	var errs []error
	for _, p := range pairs {
		pimField, remote := strings.TrimSpace(p[0]), strings.TrimSpace(p[1])
		if pimField == "" || remote == "" {
			continue
		}
		f, err := ParseField(remote)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", pimField, err))
			continue
		}
		m.Entries = append(m.Entries, Entry{PIMField: pimField, Field: f})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Parse разбирает маппинг из YAML или JSON объекта {"SKU": "Variant: sku", ...}
func Parse(data []byte) (*Mapping, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidMapping, err)
	}
	if root.Kind == 0 {
		return &Mapping{}, nil
	}

	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected an object of pim field to remote field", utils.ErrInvalidMapping)
	}

	pairs := make([][2]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: value of %q must be a string", utils.ErrInvalidMapping, k.Value)
		}
		pairs = append(pairs, [2]string{k.Value, v.Value})
	}
	return FromPairs(pairs)
}

// Load читает маппинг из файла
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return Parse(data)
}

// UnmarshalJSON сохраняет порядок ключей JSON объекта
func (m *Mapping) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// MarshalJSON кодирует маппинг в исходный вид {pimField: remoteField}
func (m Mapping) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range m.Entries {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%q", e.PIMField, e.Field.Label())
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Validate проверяет, что каждый удаленный ключ заполняется ровно одним полем PIM
func (m *Mapping) Validate() error {
	if m == nil || len(m.Entries) == 0 {
		return fmt.Errorf("%w: mapping is empty", utils.ErrValidationMissing)
	}
	seen := make(map[string]string, len(m.Entries))
	var errs []error
	for _, e := range m.Entries {
		key := e.Field.Key()
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%w: %q is mapped from both %q and %q",
				utils.ErrAmbiguousMapping, e.Field.Label(), prev, e.PIMField))
			continue
		}
		seen[key] = e.PIMField
	}
	return errors.Join(errs...)
}

// Namespace возвращает записи указанной области
func (m *Mapping) Namespace(ns Namespace) []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Field.Namespace == ns {
			out = append(out, e)
		}
	}
	return out
}

// Languages возвращает языки, явно указанные в маппинге товара
func (m *Mapping) Languages() map[string]bool {
	langs := make(map[string]bool)
	for _, e := range m.Namespace(NamespaceProduct) {
		if e.Field.Language != "" {
			langs[e.Field.Language] = true
		}
	}
	return langs
}

// ImagesField возвращает поле PIM со списком изображений
func (m *Mapping) ImagesField() (string, bool) {
	return m.find(Field.IsImages)
}

// BrandField возвращает поле PIM с именем бренда
func (m *Mapping) BrandField() (string, bool) {
	return m.find(Field.IsBrand)
}

// SupplierField возвращает поле PIM с именем поставщика
func (m *Mapping) SupplierField() (string, bool) {
	return m.find(Field.IsSupplier)
}

func (m *Mapping) find(pred func(Field) bool) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, e := range m.Entries {
		if pred(e.Field) {
			return e.PIMField, true
		}
	}
	return "", false
}
