// Package memory хранилище в памяти процесса. Используется в тестах и
// для запуска без внешней БД
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
)

// Storage реализует ports.Store
type Storage struct {
	mu         sync.RWMutex
	lookup     map[string]models.LookupRecord
	images     map[string][]models.ImageTrackingRecord
	runs       map[string]*models.ImportRun
	items      map[string][]*models.ImportItem
	dirs       map[models.DirectoryKind]map[int64]string
	exclusions map[string]models.Exclusion
}

// NewStorage создает пустое хранилище
func NewStorage() *Storage {
	return &Storage{
		lookup:     make(map[string]models.LookupRecord),
		images:     make(map[string][]models.ImageTrackingRecord),
		runs:       make(map[string]*models.ImportRun),
		items:      make(map[string][]*models.ImportItem),
		dirs:       map[models.DirectoryKind]map[int64]string{models.Brands: {}, models.Suppliers: {}},
		exclusions: make(map[string]models.Exclusion),
	}
}

func (s *Storage) Migrate(ctx context.Context) error { return nil }
func (s *Storage) Ping(ctx context.Context) error    { return nil }
func (s *Storage) Close() error                      { return nil }

// ---------- variant_lookup ----------

func (s *Storage) GetLookup(ctx context.Context, sku string) (*models.LookupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.lookup[sku]
	if !ok {
		return nil, nil
	}
	return copyLookup(rec), nil
}

func (s *Storage) UpsertLookup(ctx context.Context, rec *models.LookupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup[rec.SKU] = *copyLookup(*rec)
	return nil
}

func (s *Storage) ClearLookup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = make(map[string]models.LookupRecord)
	return nil
}

func copyLookup(rec models.LookupRecord) *models.LookupRecord {
	if rec.VariantID != nil {
		v := *rec.VariantID
		rec.VariantID = &v
	}
	return &rec
}

// ---------- image_tracking ----------

func (s *Storage) ListImages(ctx context.Context, sku string) ([]*models.ImageTrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ImageTrackingRecord, 0, len(s.images[sku]))
	for i := range s.images[sku] {
		rec := s.images[sku][i]
		out = append(out, &rec)
	}
	return out, nil
}

func (s *Storage) DeleteImages(ctx context.Context, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, sku)
	return nil
}

// SaveImage вставляет или заменяет запись по (sku, pim_filename)
func (s *Storage) SaveImage(ctx context.Context, rec *models.ImageTrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.images[rec.SKU]
	for i := range list {
		if list[i].PIMFilename == rec.PIMFilename {
			list[i] = *rec
			return nil
		}
	}
	s.images[rec.SKU] = append(list, *rec)
	return nil
}

// ---------- import_runs / import_items ----------

func (s *Storage) CreateRun(ctx context.Context, run *models.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *run
	s.runs[run.ID] = &r
	return nil
}

func (s *Storage) AppendItem(ctx context.Context, item *models.ImportItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[item.RunID]
	if !ok {
		return utils.ErrRunNotFound
	}
	switch item.CounterColumn() {
	case "created":
		run.Created++
	case "updated":
		run.Updated++
	default:
		run.Failed++
	}
	it := *item
	s.items[item.RunID] = append(s.items[item.RunID], &it)
	return nil
}

func (s *Storage) FinishRun(ctx context.Context, runID string, finishedAt time.Time) (*models.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, utils.ErrRunNotFound
	}
	if run.FinishedAt != nil {
		return nil, utils.ErrRunAlreadyFinished
	}
	fin := finishedAt
	duration := finishedAt.Sub(run.StartedAt).Milliseconds()
	run.FinishedAt = &fin
	run.DurationMs = &duration
	r := *run
	return &r, nil
}

func (s *Storage) GetRun(ctx context.Context, runID string) (*models.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	r := *run
	return &r, nil
}

func (s *Storage) ListRecentRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ImportRun, 0, len(s.runs))
	for _, run := range s.runs {
		r := *run
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Storage) ListItems(ctx context.Context, runID string, offset, limit int) ([]*models.ImportItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.items[runID]
	total := int64(len(all))
	if offset >= len(all) {
		return []*models.ImportItem{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*models.ImportItem, 0, end-offset)
	for _, it := range all[offset:end] {
		i := *it
		out = append(out, &i)
	}
	return out, total, nil
}

// ---------- brands / suppliers ----------

func (s *Storage) UpsertReference(ctx context.Context, kind models.DirectoryKind, ref models.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.dirs[kind]
	if !ok {
		dir = make(map[int64]string)
		s.dirs[kind] = dir
	}
	dir[ref.ID] = ref.Title
	return nil
}

func (s *Storage) FindReferenceID(ctx context.Context, kind models.DirectoryKind, name string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = strings.TrimSpace(name)
	var found int64
	for id, title := range s.dirs[kind] {
		if strings.EqualFold(strings.TrimSpace(title), name) && (found == 0 || id < found) {
			found = id
		}
	}
	return found, found != 0, nil
}

func (s *Storage) FindReferenceName(ctx context.Context, kind models.DirectoryKind, id int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.dirs[kind][id]
	return name, ok, nil
}

func (s *Storage) ClearDirectory(ctx context.Context, kind models.DirectoryKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[kind] = make(map[int64]string)
	return nil
}

// ---------- exclusions ----------

func (s *Storage) ListExclusions(ctx context.Context) ([]*models.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Exclusion, 0, len(s.exclusions))
	for _, e := range s.exclusions {
		ex := e
		out = append(out, &ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) SaveExclusion(ctx context.Context, e *models.Exclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exclusions[e.SKU] = *e
	return nil
}

func (s *Storage) DeleteExclusion(ctx context.Context, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exclusions, sku)
	return nil
}

func (s *Storage) IsExcluded(ctx context.Context, sku string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exclusions[sku]
	return ok, nil
}
