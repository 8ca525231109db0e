package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalwatcher/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeContainerIntegration(t *testing.T) {
	t.Run("Should wire an in-memory service from defaults", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.LogLevel = "error"

		container, cleanup, err := InitializeContainer(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, container)
		defer cleanup()

		assert.Nil(t, container.Monitor)
		assert.Nil(t, container.Watcher)

		rec := httptest.NewRecorder()
		container.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "unknown", body.Checks["db"])
		assert.Equal(t, "unknown", body.Checks["redis"])
	})

	t.Run("Should seed the default watchlist through the container", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.LogLevel = "error"

		container, cleanup, err := InitializeContainer(context.Background(), cfg)
		require.NoError(t, err)
		defer cleanup()

		result, err := container.Seeder.Seed(context.Background())
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		container.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlists/"+result.WatchlistID, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should reject an unknown log level", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.LogLevel = "loud"

		_, _, err := InitializeContainer(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestProvideCacheStore(t *testing.T) {
	t.Run("Should disable caching without Redis or the in-memory flag", func(t *testing.T) {
		store, cleanup, err := ProvideCacheStore(config.Defaults(), nil)
		require.NoError(t, err)
		defer cleanup()
		assert.Nil(t, store)
	})

	t.Run("Should use the LRU store when requested", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Cache.InMemory = true

		store, cleanup, err := ProvideCacheStore(cfg, nil)
		require.NoError(t, err)
		defer cleanup()
		assert.NotNil(t, store)
	})
}

func TestProvideHealthCheckers(t *testing.T) {
	t.Run("Should leave unconfigured dependencies nil", func(t *testing.T) {
		checkers := ProvideHealthCheckers(nil, nil)
		assert.Nil(t, checkers.Redis)
		assert.Nil(t, checkers.DB)
	})
}
