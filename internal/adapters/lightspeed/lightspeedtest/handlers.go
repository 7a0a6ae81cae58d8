package lightspeedtest

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// envelope возвращает объект тела запроса под ключом key
func envelope(r *http.Request, key string) map[string]interface{} {
	body, _ := r.Context().Value(bodyKey{}).(map[string]interface{})
	obj, _ := body[key].(map[string]interface{})
	if obj == nil {
		obj = map[string]interface{}{}
	}
	return obj
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]interface{}{"code": 404, "message": "Not found"}})
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func page(r *http.Request, n int) (int, int) {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if p < 1 {
		p = 1
	}
	if limit < 1 {
		limit = 50
	}
	from := (p - 1) * limit
	if from > n {
		from = n
	}
	to := from + limit
	if to > n {
		to = n
	}
	return from, to
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ---------- variants ----------

func (s *Server) listVariants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	var out []map[string]interface{}
	for _, id := range sortedIDs(s.variants) {
		v := s.variants[id]
		if sku := q.Get("sku"); sku != "" && v["sku"] != sku {
			continue
		}
		if ean := q.Get("ean"); ean != "" && v["ean"] != ean {
			continue
		}
		if pid := q.Get("product"); pid != "" && strconv.FormatInt(refID(v["product"]), 10) != pid {
			continue
		}
		out = append(out, copyMap(v))
	}
	s.mu.Unlock()

	from, to := page(r, len(out))
	if len(out) == 0 {
		// удаленный API отдает пустой список как false
		writeJSON(w, http.StatusOK, map[string]interface{}{"variants": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variants": out[from:to]})
}

func (s *Server) getVariant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v, ok := s.variants[pathID(r, "id")]
	v = copyMap(v)
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variant": v})
}

func (s *Server) createVariant(w http.ResponseWriter, r *http.Request) {
	payload := envelope(r, "variant")
	productID := refID(payload["product"])
	s.mu.Lock()
	if _, ok := s.products[productID]; !ok {
		s.mu.Unlock()
		notFound(w)
		return
	}
	id := s.id()
	v := copyMap(payload)
	v["id"] = id
	v["product"] = resource(productID)
	s.variants[id] = v
	out := copyMap(v)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"variant": out})
}

func (s *Server) updateVariant(w http.ResponseWriter, r *http.Request) {
	payload := envelope(r, "variant")
	s.mu.Lock()
	v, ok := s.variants[pathID(r, "id")]
	if ok {
		for k, val := range payload {
			if k != "product" && k != "id" {
				v[k] = val
			}
		}
	}
	out := copyMap(v)
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variant": out})
}

// ---------- products ----------

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	s.mu.Lock()
	ids := sortedIDs(s.products)
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.products[id].view(id, lang))
	}
	s.mu.Unlock()
	from, to := page(r, len(out))
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": out[from:to]})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	s.mu.Lock()
	p, ok := s.products[id]
	var out map[string]interface{}
	if ok {
		out = p.view(id, chi.URLParam(r, "lang"))
	}
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": out})
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	p := &product{shared: map[string]interface{}{}, locales: map[string]map[string]interface{}{}}
	p.apply(lang, envelope(r, "product"))
	s.mu.Lock()
	id := s.id()
	s.products[id] = p
	out := p.view(id, lang)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"product": out})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	lang := chi.URLParam(r, "lang")
	payload := envelope(r, "product")
	s.mu.Lock()
	p, ok := s.products[id]
	var out map[string]interface{}
	if ok {
		p.apply(lang, payload)
		out = p.view(id, lang)
	}
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": out})
}

// ---------- images ----------

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	imgs := append([]image(nil), s.images[pathID(r, "id")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"productImages": imgs})
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	productID := pathID(r, "id")
	payload := envelope(r, "productImage")
	filename, _ := payload["filename"].(string)
	s.mu.Lock()
	if _, ok := s.products[productID]; !ok {
		s.mu.Unlock()
		notFound(w)
		return
	}
	img := image{ID: s.id(), Src: "https://cdn.webshopapp.test/" + filename}
	s.images[productID] = append(s.images[productID], img)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"productImage": img})
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	productID, imageID := pathID(r, "id"), pathID(r, "imageID")
	s.mu.Lock()
	imgs := s.images[productID]
	found := false
	for i, img := range imgs {
		if img.ID == imageID {
			s.images[productID] = append(imgs[:i:i], imgs[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- brands / suppliers ----------

func (s *Server) listRefs(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	s.mu.Lock()
	refs := s.refs[kind]
	out := make([]map[string]interface{}, 0, len(refs))
	for _, id := range sortedIDs(refs) {
		out = append(out, map[string]interface{}{"id": id, "title": refs[id]})
	}
	s.mu.Unlock()
	from, to := page(r, len(out))
	writeJSON(w, http.StatusOK, map[string]interface{}{kind: out[from:to]})
}

func (s *Server) getRef(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	s.mu.Lock()
	title, ok := s.refs[kind][pathID(r, "id")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	key := "brand"
	if kind == "suppliers" {
		key = "supplier"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{key: map[string]interface{}{"id": pathID(r, "id"), "title": title}})
}
