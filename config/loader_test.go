// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Workflow.Store.Type)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

workflow:
  stage_timeout: 2m
  workflow_timeout: 10m
  max_concurrent: 4
  store:
    type: redis
    key_prefix: "test:"

llm:
  api_key: "sk-test"
  model: "gpt-4o"

github:
  offline: true

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// YAML 覆盖默认值
	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, 2*time.Minute, cfg.Workflow.StageTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.WorkflowTimeout)
	assert.Equal(t, 4, cfg.Workflow.MaxConcurrent)
	assert.Equal(t, "redis", cfg.Workflow.Store.Type)
	assert.Equal(t, "test:", cfg.Workflow.Store.KeyPrefix)
	// 未指定的字段保留默认值
	assert.Equal(t, 20, cfg.Workflow.HistorySize)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.True(t, cfg.GitHub.Offline)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("DOCFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("DOCFLOW_SERVER_API_KEYS", "a, b ,,c")
	t.Setenv("DOCFLOW_WORKFLOW_STAGE_TIMEOUT", "90s")
	t.Setenv("DOCFLOW_WORKFLOW_STORE_TYPE", "badger")
	t.Setenv("DOCFLOW_WORKFLOW_STORE_BADGER_PATH", "/tmp/docflow")
	t.Setenv("DOCFLOW_LLM_TEMPERATURE", "0.9")
	t.Setenv("DOCFLOW_GITHUB_OFFLINE", "true")
	t.Setenv("DOCFLOW_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, 90*time.Second, cfg.Workflow.StageTimeout)
	assert.Equal(t, "badger", cfg.Workflow.Store.Type)
	assert.Equal(t, "/tmp/docflow", cfg.Workflow.Store.BadgerPath)
	assert.Equal(t, 0.9, cfg.LLM.Temperature)
	assert.True(t, cfg.GitHub.Offline)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
llm:
  model: "yaml-model"
  base_url: "http://yaml"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("DOCFLOW_SERVER_HTTP_PORT", "9999")
	t.Setenv("DOCFLOW_LLM_MODEL", "env-model")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量覆盖 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	// 未被覆盖的 YAML 值保留
	assert.Equal(t, "http://yaml", cfg.LLM.BaseURL)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("DOCFLOW_WORKFLOW_STAGE_TIMEOUT", "not-a-duration")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCFLOW_WORKFLOW_STAGE_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	t.Setenv("DOCFLOW_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid HTTP port (negative)",
			modify:  func(c *Config) { c.Server.HTTPPort = -1 },
			wantErr: true,
		},
		{
			name:    "invalid HTTP port (too large)",
			modify:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: true,
		},
		{
			name:    "tls cert without key",
			modify:  func(c *Config) { c.Server.TLSCertFile = "server.crt" },
			wantErr: true,
		},
		{
			name:    "zero stage timeout",
			modify:  func(c *Config) { c.Workflow.StageTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero max concurrent",
			modify:  func(c *Config) { c.Workflow.MaxConcurrent = 0 },
			wantErr: true,
		},
		{
			name:    "unknown store type",
			modify:  func(c *Config) { c.Workflow.Store.Type = "etcd" },
			wantErr: true,
		},
		{
			name:    "badger without path",
			modify:  func(c *Config) { c.Workflow.Store.Type = "badger" },
			wantErr: true,
		},
		{
			name: "all quality weights zero",
			modify: func(c *Config) {
				c.Quality = QualityConfig{}
			},
			wantErr: true,
		},
		{
			name:    "negative quality weight",
			modify:  func(c *Config) { c.Quality.AccuracyWeight = -1 },
			wantErr: true,
		},
		{
			name:    "invalid temperature (too high)",
			modify:  func(c *Config) { c.LLM.Temperature = 3.0 },
			wantErr: true,
		},
		{
			name:    "llm retries above one",
			modify:  func(c *Config) { c.LLM.MaxRetries = 3 },
			wantErr: true,
		},
		{
			name:    "llm retries disabled",
			modify:  func(c *Config) { c.LLM.MaxRetries = 0 },
			wantErr: false,
		},
		{
			name:    "mongo artifacts without uri",
			modify:  func(c *Config) { c.Artifacts.Backend = "mongo" },
			wantErr: true,
		},
		{
			name:    "unknown artifacts backend",
			modify:  func(c *Config) { c.Artifacts.Backend = "s3" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8080\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}
