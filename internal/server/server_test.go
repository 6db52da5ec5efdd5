package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mythweaver/api/internal/config"
	"mythweaver/api/internal/handlers"
	"mythweaver/api/internal/metrics"
	"mythweaver/api/internal/notify"
	"mythweaver/api/internal/storage"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T, mode config.StorageMode, dataDir string) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.AppConfig{
		Environment: "test",
		Storage:     config.StorageConfig{Mode: mode, DataDir: dataDir},
		Security:    config.SecurityConfig{JWTAccessSecret: "secret"},
	}
	reg := prometheus.NewRegistry()
	set := handlers.NewHandlerSet(zerolog.Nop(), cfg, handlers.Dependencies{
		DB:      okPinger{},
		Cache:   client,
		Sockets: notify.NewHub(time.Second, zerolog.Nop()),
	})
	return NewHTTPServer(cfg, zerolog.Nop(), set, reg, metrics.New(reg)).Handler()
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServerRoutes(t *testing.T) {
	handler := newTestServer(t, config.StorageModeRemote, t.TempDir())

	assert.Equal(t, http.StatusOK, get(handler, "/api/healthz").Code)
	assert.Equal(t, http.StatusUnauthorized, get(handler, "/api/v1/images").Code)

	rec := get(handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mythweaver_http_requests_total")

	assert.Equal(t, http.StatusNotFound, get(handler, "/images/a.png").Code)
}

func TestServerServesLocalImages(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewLocalStore(dir, "http://localhost:8080")
	uri, err := store.Put(context.Background(), "abc", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/images/abc.png", uri)

	handler := newTestServer(t, config.StorageModeLocal, dir)

	rec := get(handler, "/images/abc.png")
	require.Equal(t, http.StatusOK, rec.Code)
	want, err := os.ReadFile(filepath.Join(dir, "images", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, want, rec.Body.Bytes())
}
