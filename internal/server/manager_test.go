package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func isRunning(m *Manager) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

func ephemeral() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// --- 配置映射 ---

func TestFromServerConfig(t *testing.T) {
	cfg := FromServerConfig(config.ServerConfig{
		HTTPPort:        9000,
		ReadTimeout:     5 * time.Second,
		ShutdownTimeout: 3 * time.Second,
		TLSCertFile:     "a.crt",
		TLSKeyFile:      "a.key",
	})
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout, "zero value keeps default")
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, "a.crt", cfg.TLSCertFile)
}

func TestMetricsConfig(t *testing.T) {
	_, ok := MetricsConfig(config.ServerConfig{})
	assert.False(t, ok)

	cfg, ok := MetricsConfig(config.ServerConfig{MetricsPort: 9091})
	require.True(t, ok)
	assert.Equal(t, ":9091", cfg.Addr)
}

func TestNewManager_HardenedTLS(t *testing.T) {
	m := NewManager(okHandler(), DefaultConfig(), nil)
	require.NotNil(t, m.server.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), m.server.TLSConfig.MinVersion)
	assert.Equal(t, ":8080", m.Addr())
	assert.True(t, isRunning(m))
}

// --- 生命周期 ---

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager(okHandler(), ephemeral(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.NotEqual(t, "127.0.0.1:0", m.Addr(), "Addr reports the bound port")
	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, isRunning(m))
	require.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(okHandler(), ephemeral(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager(okHandler(), ephemeral(), zap.NewNop())
	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	assert.ErrorIs(t, m.Start(), ErrServerClosed)
}

func TestManager_ListenError(t *testing.T) {
	first := NewManager(okHandler(), ephemeral(), zap.NewNop())
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := ephemeral()
	cfg.Addr = first.Addr()
	second := NewManager(okHandler(), cfg, zap.NewNop())
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestManager_RunStopsOnContextCancel(t *testing.T) {
	m := NewManager(okHandler(), ephemeral(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + m.Addr() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, isRunning(m))
}

func TestManager_Errors(t *testing.T) {
	m := NewManager(okHandler(), ephemeral(), zap.NewNop())
	ch := m.Errors()
	require.NotNil(t, ch)

	select {
	case <-ch:
		t.Fatal("should not have received an error")
	default:
	}
}
