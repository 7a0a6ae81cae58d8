package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PIMRecord плоская запись фида PIM: имя колонки -> значение
type PIMRecord map[string]string

// SKU возвращает артикул записи (SKU, sku или Article_Code)
func (r PIMRecord) SKU() string {
	return r.first("SKU", "sku", "Article_Code")
}

// EAN возвращает штрихкод записи
func (r PIMRecord) EAN() string {
	return r.first("EAN", "ean")
}

// Value возвращает значение поля без пробелов по краям
func (r PIMRecord) Value(field string) string {
	return strings.TrimSpace(r[field])
}

func (r PIMRecord) first(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// RecordFromMap приводит произвольный JSON-объект к PIMRecord
func RecordFromMap(m map[string]interface{}) PIMRecord {
	rec := make(PIMRecord, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			rec[k] = ""
		case string:
			rec[k] = t
		case float64:
			rec[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			rec[k] = fmt.Sprint(t)
		}
	}
	return rec
}
