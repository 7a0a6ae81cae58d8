// Package lightspeedtest поддельный удаленный каталог для тестов на httptest
package lightspeedtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	APIKey    = "test-key"
	APISecret = "test-secret"
)

// поля товара, хранящиеся отдельно для каждой локали
var localized = map[string]bool{"title": true, "fulltitle": true, "description": true, "content": true}

// Call записанный запрос. Path без языка и суффикса .json: "products/12"
type Call struct {
	Method string
	Lang   string
	Path   string
	Body   map[string]interface{}
}

type product struct {
	shared  map[string]interface{}
	locales map[string]map[string]interface{}
}

type image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

// Server состояние поддельного каталога
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	products map[int64]*product
	variants map[int64]map[string]interface{}
	images   map[int64][]image
	refs     map[string]map[int64]string
	calls    []Call
	failures map[string]int
}

// NewServer запускает сервер; закрывается через t.Cleanup вызывающим
func NewServer() *Server {
	s := &Server{
		nextID:   1000,
		products: make(map[int64]*product),
		variants: make(map[int64]map[string]interface{}),
		images:   make(map[int64][]image),
		refs:     map[string]map[int64]string{"brands": {}, "suppliers": {}},
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Route("/{lang}", func(r chi.Router) {
		r.Get("/variants.json", s.listVariants)
		r.Post("/variants.json", s.createVariant)
		r.Get("/variants/{id}.json", s.getVariant)
		r.Put("/variants/{id}.json", s.updateVariant)

		r.Get("/products.json", s.listProducts)
		r.Post("/products.json", s.createProduct)
		r.Get("/products/{id}.json", s.getProduct)
		r.Put("/products/{id}.json", s.updateProduct)

		r.Get("/products/{id}/images.json", s.listImages)
		r.Post("/products/{id}/images.json", s.uploadImage)
		r.Delete("/products/{id}/images/{imageID}.json", s.deleteImage)

		r.Get("/{kind:(?:brands|suppliers)}.json", s.listRefs)
		r.Get("/{kind:(?:brands|suppliers)}/{id}.json", s.getRef)
	})
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != APIKey || pass != APISecret {
			http.Error(w, `{"error":{"code":401,"message":"Unauthorized"}}`, http.StatusUnauthorized)
			return
		}

		lang, path := splitPath(r.URL.Path)
		var body map[string]interface{}
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodDelete {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Lang: lang, Path: path, Body: body})
		status, fail := s.failures[r.Method+" "+path]
		s.mu.Unlock()

		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected failure"}}`, status)
			return
		}

		r = r.WithContext(withBody(r.Context(), body))
		next.ServeHTTP(w, r)
	})
}

func splitPath(p string) (lang, path string) {
	p = strings.TrimSuffix(strings.TrimPrefix(p, "/"), ".json")
	lang, path, _ = strings.Cut(p, "/")
	return lang, path
}

// Fail заставляет запросы method к path ("products/12") отвечать статусом status
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// ClearFailures снимает все внедренные ошибки
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// Calls копия журнала запросов
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls очищает журнал запросов
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Count число запросов method к пути, начинающемуся с prefix
func (s *Server) Count(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// Mutations число изменяющих запросов
func (s *Server) Mutations() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// ---------- seeding ----------

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// AddProduct добавляет товар. locales задает локализованные поля по языкам
func (s *Server) AddProduct(shared map[string]interface{}, locales map[string]map[string]interface{}) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &product{shared: map[string]interface{}{}, locales: map[string]map[string]interface{}{}}
	for k, v := range shared {
		p.shared[k] = v
	}
	for lang, fields := range locales {
		p.locales[lang] = map[string]interface{}{}
		for k, v := range fields {
			p.locales[lang][k] = v
		}
	}
	id := s.id()
	s.products[id] = p
	return id
}

// AddVariant добавляет вариант товара
func (s *Server) AddVariant(productID int64, fields map[string]interface{}) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	v := map[string]interface{}{}
	for k, val := range fields {
		v[k] = val
	}
	v["id"] = id
	v["product"] = resource(productID)
	s.variants[id] = v
	return id
}

// AddReference добавляет бренд (kind "brands") или поставщика ("suppliers")
func (s *Server) AddReference(kind string, id int64, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[kind][id] = title
}

// AddImage прикрепляет изображение к товару
func (s *Server) AddImage(productID int64, src string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.images[productID] = append(s.images[productID], image{ID: id, Src: src})
	return id
}

// Product товар в локали lang, как его вернет API
func (s *Server) Product(id int64, lang string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	return p.view(id, lang)
}

// Variant копия варианта
func (s *Server) Variant(id int64) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.variants[id])
}

// ProductIDs идентификаторы всех товаров
func (s *Server) ProductIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Images изображения товара
func (s *Server) Images(productID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.images[productID]))
	for _, img := range s.images[productID] {
		out = append(out, img.Src)
	}
	return out
}

func (p *product) view(id int64, lang string) map[string]interface{} {
	out := copyMap(p.shared)
	for k, v := range p.locales[lang] {
		out[k] = v
	}
	out["id"] = id
	return out
}

// apply раскладывает тело запроса по общим и локализованным полям
func (p *product) apply(lang string, payload map[string]interface{}) {
	for k, v := range payload {
		switch {
		case localized[k]:
			if p.locales[lang] == nil {
				p.locales[lang] = map[string]interface{}{}
			}
			p.locales[lang][k] = v
		case k == "brand" || k == "supplier":
			p.shared[k] = resource(refID(v))
		default:
			p.shared[k] = v
		}
	}
}

func resource(id int64) map[string]interface{} {
	return map[string]interface{}{"resource": map[string]interface{}{"id": id}}
}

// refID принимает как простой id, так и {resource: {id}}
func refID(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case map[string]interface{}:
		if res, ok := t["resource"].(map[string]interface{}); ok {
			return refID(res["id"])
		}
	}
	return 0
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
