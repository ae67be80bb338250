package httptransport_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "maestro/internal/transport/http"
)

type panicRegistrar struct{}

func (panicRegistrar) Register(r chi.Router) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
}

func TestRouter(t *testing.T) {
	router := httptransport.NewRouter(slog.New(slog.DiscardHandler), panicRegistrar{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("assigns a request id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("honors an inbound request id", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-ID", "upstream-id")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "upstream-id", resp.Header.Get("X-Request-ID"))
	})

	t.Run("recovers from handler panics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/boom")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
