package images

import (
	"regexp"
	"strings"
)

var httpPrefix = regexp.MustCompile(`(?i)^https?://`)

// SplitURLs разбивает ячейку PIM со списком изображений через запятую
func SplitURLs(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sanitize убирает ведущий @, обрамляющие кавычки и пробелы
func Sanitize(raw string) string {
	url := strings.TrimSpace(raw)
	url = strings.TrimPrefix(url, "@")
	if len(url) >= 2 {
		first, last := url[0], url[len(url)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			url = url[1 : len(url)-1]
		}
	}
	return strings.TrimSpace(url)
}

// Normalize очищает список, убирает дубликаты с сохранением порядка
// и оставляет только http(s) адреса
func Normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		url := Sanitize(r)
		if url == "" || !httpPrefix.MatchString(url) || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

// Filename последний сегмент пути без query, в нижнем регистре
func Filename(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// sameSet сравнивает два набора имен без учета порядка
func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
