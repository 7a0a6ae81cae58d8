package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "catalog-sync", cfg.AppName)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, []string{"nl", "de", "en"}, cfg.Lightspeed.Languages)
	require.Equal(t, 200*time.Millisecond, cfg.Sync.ListDelay)
	require.Equal(t, time.Second, cfg.Sync.ItemDelay)
	require.Equal(t, 5, cfg.PIM.MaxRedirects)
}

func TestLoadEnvFallbacks(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIGHTSPEED_API_KEY", "key")
	t.Setenv("LIGHTSPEED_API_SECRET", "secret")
	t.Setenv("IMPORT_URL", "https://pim.example/feed.csv")
	t.Setenv("TENANT", "shop-1")
	t.Setenv("MAPPING", `{"SKU": "Variant: sku", "Titel": "Product: title (NL)"}`)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "key", cfg.Lightspeed.APIKey)
	require.Equal(t, "https://pim.example/feed.csv", cfg.Sync.ImportURL)
	require.Equal(t, "shop-1", cfg.Tenant)
	require.NoError(t, cfg.Validate())

	m, err := cfg.LoadMapping()
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	require.Equal(t, "SKU", m.Entries[0].PIMField)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := []byte(`
storage:
  driver: memory
lightspeed:
  defaultLanguage: de
  languages: [en]
sync:
  itemDelay: 0s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, []string{"de", "en"}, cfg.Lightspeed.Languages)
	require.Zero(t, cfg.Sync.ItemDelay)
}

func TestValidateRequiresCredentials(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	err = cfg.Validate()
	require.True(t, errors.Is(err, utils.ErrValidationMissing))

	cfg.Lightspeed.APIKey, cfg.Lightspeed.APISecret = "k", "s"
	cfg.Storage.Driver = "mongo"
	require.ErrorIs(t, cfg.Validate(), utils.ErrStorageUnknownDriver)
}

func TestLoadMappingEmpty(t *testing.T) {
	var cfg Config
	m, err := cfg.LoadMapping()
	require.NoError(t, err)
	require.Nil(t, m)
}
