package pim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const feed = "\xEF\xBB\xBFSKU;Price;Images\nX1;10.00;https://img.test/a.jpg,https://img.test/b.jpg\n;;\nX2;\"5,50\"\n"

func TestFetchParsesSemicolonCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/feed.csv", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	c := NewFeedClient(FeedConfig{}, logger.NewNopLogger())
	records, err := c.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "X1", records[0].SKU())
	require.Equal(t, "https://img.test/a.jpg,https://img.test/b.jpg", records[0]["Images"])
	require.Equal(t, "5,50", records[1]["Price"])
	require.Equal(t, "", records[1]["Images"])
}

func TestFetchRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>login</body></html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewFeedClient(FeedConfig{}, logger.NewNopLogger()).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, utils.ErrNotCSV)
}

func TestFetchStopsRedirectLoops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	c := NewFeedClient(FeedConfig{MaxRedirects: 2, Timeout: time.Second}, logger.NewNopLogger())
	_, err := c.Fetch(context.Background(), srv.URL+"/a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "redirects")
}

func TestParseWindows1251(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("SKU;Title\nX1;Велосипед\n")
	require.NoError(t, err)

	c := NewFeedClient(FeedConfig{Encoding: "windows-1251"}, logger.NewNopLogger())
	records, err := c.Parse(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, "Велосипед", records[0]["Title"])
}

func TestDownloaderLimitsSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.jpg":
			_, _ = w.Write([]byte("jpeg"))
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	d := NewDownloader(time.Second, 0, 16)
	data, err := d.Download(context.Background(), srv.URL+"/small.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), data)

	_, err = d.Download(context.Background(), srv.URL+"/big.jpg")
	require.Error(t, err)
	_, err = d.Download(context.Background(), srv.URL+"/missing.jpg")
	require.Error(t, err)
}
