package app

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/config"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Driver = "memory"
	cfg.Lightspeed.APIKey = "key"
	cfg.Lightspeed.APISecret = "secret"
	cfg.Lightspeed.DefaultLanguage = "nl"
	cfg.Lightspeed.Languages = []string{"nl", "en"}
	cfg.Sync.Mapping = `{"SKU": "Variant: sku", "Title EN": "Product: title (EN)"}`
	return cfg
}

func TestNewWiresEngineWithoutExternalServices(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Orchestrator)
	require.Nil(t, a.Bus)
	require.NoError(t, a.Store.Ping(context.Background()))
	require.Len(t, a.Orchestrator.Mapping().Entries, 2)
	require.Equal(t, "SKU", a.Orchestrator.Mapping().Entries[0].PIMField)
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	cfg := memoryConfig()
	cfg.Lightspeed.APISecret = ""

	_, err := New(context.Background(), cfg, logger.NewNopLogger())
	require.ErrorIs(t, err, utils.ErrValidationMissing)
}

func TestNewRejectsAmbiguousMapping(t *testing.T) {
	cfg := memoryConfig()
	cfg.Sync.Mapping = `{"Price": "Variant: priceIncl", "Prijs": "Variant: priceIncl"}`

	_, err := New(context.Background(), cfg, logger.NewNopLogger())
	require.ErrorIs(t, err, utils.ErrAmbiguousMapping)
}
