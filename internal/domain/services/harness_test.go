package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/lightspeed"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/lightspeed/lightspeedtest"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/memory"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/stretchr/testify/require"
)

type stubDownloader struct{}

func (stubDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("image:" + url), nil
}

// harness движок поверх поддельного каталога и хранилища в памяти
type harness struct {
	srv        *lightspeedtest.Server
	client     *lightspeed.Client
	store      *memory.Storage
	lookup     *LookupService
	audit      *AuditService
	exclusions *ExclusionService
	orch       *Orchestrator
}

func newHarness(t *testing.T, m *mapping.Mapping, languages ...string) *harness {
	t.Helper()
	srv := lightspeedtest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewNopLogger()
	client, err := lightspeed.NewClient(lightspeed.Config{
		BaseURL:      srv.URL,
		APIKey:       lightspeedtest.APIKey,
		APISecret:    lightspeedtest.APISecret,
		RetryBackoff: time.Millisecond,
	}, log)
	require.NoError(t, err)

	store := memory.NewStorage()
	h := &harness{
		srv:        srv,
		client:     client,
		store:      store,
		lookup:     NewLookupService(store, client, nil, time.Minute, log),
		audit:      NewAuditService(store, log),
		exclusions: NewExclusionService(store, log),
	}
	if len(languages) == 0 {
		languages = []string{"nl"}
	}
	h.orch = NewOrchestrator(Dependencies{
		Catalog:    client,
		Directory:  store,
		Lookup:     h.lookup,
		Audit:      h.audit,
		Exclusions: h.exclusions,
		Images:     images.NewReconciler(client, store, stubDownloader{}, log),
		Logger:     log,
	}, Options{Mapping: m, Languages: languages, BaseLanguage: "nl"})
	return h
}

func mustMapping(t *testing.T, pairs ...[2]string) *mapping.Mapping {
	t.Helper()
	m, err := mapping.FromPairs(pairs)
	require.NoError(t, err)
	return m
}

// lastRun самый свежий прогон с элементами
func (h *harness) lastRun(t *testing.T) *RunDetails {
	t.Helper()
	runs, err := h.audit.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	details, err := h.audit.Details(context.Background(), runs[0].ID, 1, 100)
	require.NoError(t, err)
	return details
}

func (h *harness) itemsOf(t *testing.T, runID string) []*models.ImportItem {
	t.Helper()
	details, err := h.audit.Details(context.Background(), runID, 1, 100)
	require.NoError(t, err)
	return details.Items
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
