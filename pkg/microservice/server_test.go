package microservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/illmade-knight/go-assetcache/pkg/assetcache"
	"github.com/illmade-knight/go-assetcache/pkg/config"
	"github.com/illmade-knight/go-assetcache/pkg/library"
	"github.com/illmade-knight/go-assetcache/pkg/loader"
	"github.com/illmade-knight/go-assetcache/pkg/microservice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLibrary builds a library over an in-memory filesystem. "food.png" is
// registered but missing on disk.
func newTestLibrary(t *testing.T) *library.Library {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "assets/images/chips.png", []byte("\x89PNG\r\n\x1a\nchips"), 0o644))
	require.NoError(t, util.WriteFile(fs, "assets/data/levels.json", []byte(`{"levels": 3}`), 0o644))

	src, err := loader.NewFilesystemSource(fs, zerolog.Nop())
	require.NoError(t, err)
	l, err := loader.New(src, loader.Raw, zerolog.Nop())
	require.NoError(t, err)

	lib, err := library.New([]config.Collection{
		{Name: "images", BasePath: "assets/images/", Assets: []config.Asset{
			{Key: "chips", Path: "chips.png"},
			{Key: "food", Path: "food.png"},
		}},
		{Name: "data", BasePath: "assets/data/", Assets: []config.Asset{
			{Key: "levels", Path: "levels.json"},
		}},
	}, nil, l, zerolog.Nop())
	require.NoError(t, err)
	return lib
}

func TestServer_Routes(t *testing.T) {
	lib := newTestLibrary(t)
	s := microservice.NewServer(lib, ":0", zerolog.Nop())

	do := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Mux().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	t.Run("Healthz", func(t *testing.T) {
		rec := do(http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("Get asset", func(t *testing.T) {
		rec := do(http.MethodGet, "/assets/images/chips")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "\x89PNG\r\n\x1a\nchips", rec.Body.String())
	})

	t.Run("Status codes", func(t *testing.T) {
		testCases := []struct {
			method, target string
			want           int
		}{
			{http.MethodGet, "/assets/fonts/mono", http.StatusNotFound},
			{http.MethodGet, "/assets/images/unknown", http.StatusNotFound},
			{http.MethodGet, "/assets/images/food", http.StatusNotFound},
			{http.MethodPost, "/assets/images/chips/evict", http.StatusNoContent},
			{http.MethodPost, "/assets/images/unknown/evict", http.StatusNotFound},
			{http.MethodPost, "/assets/data/clear", http.StatusNoContent},
			{http.MethodPost, "/assets/fonts/clear", http.StatusNotFound},
		}
		for _, tc := range testCases {
			t.Run(fmt.Sprintf("%s %s", tc.method, tc.target), func(t *testing.T) {
				assert.Equal(t, tc.want, do(tc.method, tc.target).Code)
			})
		}
	})

	t.Run("Stats", func(t *testing.T) {
		_ = do(http.MethodGet, "/assets/data/levels")
		_ = do(http.MethodGet, "/assets/data/levels")

		rec := do(http.MethodGet, "/stats")

		require.Equal(t, http.StatusOK, rec.Code)
		var stats map[string]assetcache.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, uint64(1), stats["data"].Loads)
		assert.Equal(t, uint64(1), stats["data"].Hits)
	})
}

// failingStore returns a generic load failure for every Get.
type failingStore struct{ *library.Library }

func (failingStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, &assetcache.LoadError{Key: "k", Path: "p", Cause: fmt.Errorf("decoder crashed")}
}

func TestServer_LoadFailureIsBadGateway(t *testing.T) {
	s := microservice.NewServer(failingStore{}, ":0", zerolog.Nop())
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/images/chips", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// canceledStore reports that the caller went away mid-request.
type canceledStore struct{ *library.Library }

func (canceledStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, context.Canceled
}

func TestServer_ClientCancelIsNotServerError(t *testing.T) {
	s := microservice.NewServer(canceledStore{}, ":0", zerolog.Nop())
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/images/chips", nil))

	assert.Equal(t, microservice.StatusClientClosedRequest, rec.Code)
	assert.Less(t, rec.Code, http.StatusInternalServerError)
}

func TestServer_StartAndShutdown(t *testing.T) {
	// Arrange
	s := microservice.NewServer(newTestLibrary(t), "127.0.0.1:0", zerolog.Nop())

	// Act
	require.NoError(t, s.Start())
	port := s.GetHTTPPort()
	resp, err := http.Get("http://127.0.0.1" + port + "/assets/images/chips")

	// Assert
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chips")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
