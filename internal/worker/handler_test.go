package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/lightspeed"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/lightspeed/lightspeedtest"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/pim"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/memory"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/services"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/stretchr/testify/require"
)

type fixedDownloads struct{}

func (fixedDownloads) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("image"), nil
}

type env struct {
	srv     *lightspeedtest.Server
	store   *memory.Storage
	bus     *messaging.MemoryBus
	audit   *services.AuditService
	handler *Handler
}

func newEnv(t *testing.T, feedURL string) *env {
	t.Helper()
	log := logger.NewNopLogger()
	srv := lightspeedtest.NewServer()
	t.Cleanup(srv.Close)

	client, err := lightspeed.NewClient(lightspeed.Config{
		BaseURL:      srv.URL,
		APIKey:       lightspeedtest.APIKey,
		APISecret:    lightspeedtest.APISecret,
		RetryBackoff: time.Millisecond,
	}, log)
	require.NoError(t, err)

	m, err := mapping.FromPairs([][2]string{{"SKU", "Variant: sku"}, {"Price", "Variant: priceIncl"}})
	require.NoError(t, err)

	store := memory.NewStorage()
	bus := messaging.NewMemoryBus(log)
	lookup := services.NewLookupService(store, client, nil, time.Minute, log)
	audit := services.NewAuditService(store, log)
	orch := services.NewOrchestrator(services.Dependencies{
		Catalog:    client,
		Directory:  store,
		Lookup:     lookup,
		Audit:      audit,
		Exclusions: services.NewExclusionService(store, log),
		Images:     images.NewReconciler(client, store, fixedDownloads{}, log),
		Events:     messaging.NewEventPublisher(bus, ""),
		Logger:     log,
	}, services.Options{Mapping: m, Languages: []string{"nl"}, BaseLanguage: "nl"})

	rebuild := services.NewRebuildService(client, lookup, store, 0, 0, log)
	feed := pim.NewFeedClient(pim.FeedConfig{}, log)
	return &env{
		srv:     srv,
		store:   store,
		bus:     bus,
		audit:   audit,
		handler: NewHandler(orch, feed, rebuild, feedURL, log),
	}
}

func command(t *testing.T, commandType string, payload interface{}) *interfaces.Message {
	t.Helper()
	body, err := messaging.NewCommand(commandType, payload, "test")
	require.NoError(t, err)
	return &interfaces.Message{ID: "m-1", Topic: messaging.DefaultCommandTopic, Value: body}
}

func TestHandleSyncSKUPublishesEvent(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	msg := command(t, messaging.CommandSyncSKU, messaging.SyncSKUPayload{
		Record: models.PIMRecord{"SKU": "W1", "Price": "5.00"},
	})
	require.NoError(t, e.handler.Handle(ctx, msg))

	events := e.bus.Sent(messaging.DefaultEventTopic)
	require.Len(t, events, 1)
	require.Equal(t, "W1", events[0].Key)

	var ev messaging.SyncCompleted
	require.NoError(t, json.Unmarshal(events[0].Value, &ev))
	require.Equal(t, messaging.SyncCompletedEvent, ev.EventType)
	require.Equal(t, models.StatusCreated, ev.Status)
	require.NotNil(t, ev.ProductID)
	require.NotNil(t, ev.VariantID)

	rec, err := e.store.GetLookup(ctx, "W1")
	require.NoError(t, err)
	require.Equal(t, *ev.ProductID, rec.ProductID)
}

func TestHandleSyncFeedRunsBatch(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("SKU;Price\nF1;1.00\nF2;2.00\n"))
	}))
	defer feed.Close()

	e := newEnv(t, feed.URL)
	require.NoError(t, e.handler.Handle(context.Background(), command(t, messaging.CommandSyncFeed, messaging.FeedPayload{})))

	runs, err := e.audit.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "test", runs[0].TriggeredBy)
	require.Equal(t, 2, runs[0].Created)
	require.NotNil(t, runs[0].FinishedAt)
	require.Len(t, e.bus.Sent(messaging.DefaultEventTopic), 2)
}

func TestHandleRebuildLookup(t *testing.T) {
	e := newEnv(t, "")
	pid := e.srv.AddProduct(map[string]interface{}{"visibility": "visible"}, nil)
	e.srv.AddVariant(pid, map[string]interface{}{"sku": "R1"})

	require.NoError(t, e.handler.Handle(context.Background(),
		command(t, messaging.CommandRebuildLookup, messaging.RebuildPayload{Clear: true})))

	rec, err := e.store.GetLookup(context.Background(), "R1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, pid, rec.ProductID)
}

func TestHandleSyncImages(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	pid := e.srv.AddProduct(map[string]interface{}{"visibility": "visible"}, nil)
	e.srv.AddVariant(pid, map[string]interface{}{"sku": "P1"})

	require.NoError(t, e.handler.Handle(ctx, command(t, messaging.CommandSyncImages, messaging.SyncImagesPayload{
		SKU:  "P1",
		URLs: []string{"https://pim.test/p1.jpg"},
	})))
	require.Equal(t, []string{"https://cdn.webshopapp.test/p1.jpg"}, e.srv.Images(pid))

	events := e.bus.Sent(messaging.DefaultEventTopic)
	require.Len(t, events, 1)
	var ev messaging.SyncCompleted
	require.NoError(t, json.Unmarshal(events[0].Value, &ev))
	require.Equal(t, models.OpUpdate, ev.Op)
	require.Equal(t, models.StatusUpdated, ev.Status)

	// неизвестный SKU не повторяется шиной
	require.NoError(t, e.handler.Handle(ctx, command(t, messaging.CommandSyncImages, messaging.SyncImagesPayload{
		SKU:  "P2",
		URLs: []string{"https://pim.test/p2.jpg"},
	})))
	events = e.bus.Sent(messaging.DefaultEventTopic)
	require.Len(t, events, 2)
	require.NoError(t, json.Unmarshal(events[1].Value, &ev))
	require.Equal(t, models.StatusFailed, ev.Status)
}

func TestHandleUnknownAndMalformed(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	require.NoError(t, e.handler.Handle(ctx, command(t, "drop_catalog", nil)))
	require.Error(t, e.handler.Handle(ctx, &interfaces.Message{ID: "bad", Value: []byte("{")}))
	require.Zero(t, e.srv.Mutations())
}

func TestHandlerSubscribedToBus(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	unsubscribe, err := e.bus.Subscribe(ctx, messaging.DefaultCommandTopic, e.handler.Handle)
	require.NoError(t, err)
	defer unsubscribe()

	body, err := messaging.NewCommand(messaging.CommandSyncSKU, messaging.SyncSKUPayload{
		Record: models.PIMRecord{"SKU": "B1", "Price": "3.00"},
	}, "bus")
	require.NoError(t, err)
	require.NoError(t, e.bus.Publish(ctx, messaging.DefaultCommandTopic, body))

	require.Len(t, e.bus.Sent(messaging.DefaultEventTopic), 1)
}
