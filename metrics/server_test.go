package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, health HealthFunc) *Server {
	t.Helper()

	server := NewServer("127.0.0.1:0", health)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

func TestNewServer_CreatesServerWithAddress(t *testing.T) {
	server := NewServer(":9999", nil)

	assert.NotNil(t, server)
	assert.NotNil(t, server.server)
	assert.Equal(t, ":9999", server.Addr())
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	require.NoError(t, server.Start())

	url := "http://" + server.Addr() + "/metrics"
	resp, err := http.Get(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, server.Err())

	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestServer_MetricsEndpointReturnsPrometheusFormat(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestServer_HealthEndpoint(t *testing.T) {
	t.Run("healthy without a health func", func(t *testing.T) {
		server := startServer(t, nil)

		resp, err := http.Get("http://" + server.Addr() + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok\n", string(body))
	})

	t.Run("unhealthy when the health func fails", func(t *testing.T) {
		server := startServer(t, func(context.Context) error {
			return errors.New("registry unreachable")
		})

		resp, err := http.Get("http://" + server.Addr() + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Contains(t, string(body), "registry unreachable")
	})
}

func TestServer_MultipleStartCallsDoNotError(t *testing.T) {
	server := startServer(t, nil)

	assert.NoError(t, server.Start())
}

func TestServer_StartReturnsBindErrors(t *testing.T) {
	server1 := startServer(t, nil)

	server2 := NewServer(server1.Addr(), nil)
	err := server2.Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
