package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/host"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Bundles.Root = filepath.Join(dir, "bundles")
	cfg.Bundles.EntryFile = "index.html"
	cfg.Host.PrefsFile = filepath.Join(dir, "host.toml")
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false
	return cfg
}

func payload(t *testing.T, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("<!DOCTYPE html><html><body>" + version + "</body></html>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body, err := sonic.Marshal(bundle.Payload{
		Version: version,
		Files: []*bundle.Node{
			{Name: "index.html", Content: base64.StdEncoding.EncodeToString(buf.Bytes())},
		},
	})
	require.NoError(t, err)
	return body
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	s, err := NewServer(testConfig(t))
	require.NoError(t, err)
	defer s.Close()

	w := serve(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activeVersion":"base"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	serve(s, http.MethodGet, "/api/bundles", nil)

	w = serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bundles_operations_total")
	assert.Contains(t, w.Body.String(), "bundles_http_requests_total")
}

func TestUsePersistsHostRoot(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewServer(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, http.StatusOK, serve(s, http.MethodPost, "/api/bundles", payload(t, "1.4.0")).Code)
	require.Equal(t, http.StatusOK, serve(s, http.MethodPost, "/api/bundles/1.4.0/use", nil).Code)

	bridge, err := host.NewBridge(cfg.Host.PrefsFile, nil, nil)
	require.NoError(t, err)
	root, err := filepath.Abs(filepath.Join(cfg.Bundles.Root, "1.4.0"))
	require.NoError(t, err)
	assert.Equal(t, root, bridge.ContentRoot())
}

func TestDeferredActivationAppliedOnStart(t *testing.T) {
	cfg := testConfig(t)
	first, err := NewServer(cfg)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(first, http.MethodPost, "/api/bundles", payload(t, "2.0.0")).Code)
	require.Equal(t, http.StatusOK, serve(first, http.MethodPost, "/api/bundles/2.0.0/use?defer=true", nil).Code)
	require.NoError(t, first.Close())

	_, err = os.Stat(cfg.Host.PrefsFile)
	require.True(t, os.IsNotExist(err), "deferred use must not touch the host")

	second, err := NewServer(cfg)
	require.NoError(t, err)
	defer second.Close()

	bridge, err := host.NewBridge(cfg.Host.PrefsFile, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", filepath.Base(bridge.ContentRoot()))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = "0"
	s, err := NewServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
