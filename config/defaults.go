// =============================================================================
// 📦 DocFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Quality:   DefaultQualityConfig(),
		LLM:       DefaultLLMConfig(),
		GitHub:    DefaultGitHubConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Mongo:     DefaultMongoConfig(),
		Artifacts: ArtifactsConfig{Backend: "none"},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       100,
		RateLimitBurst:     200,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

// DefaultWorkflowConfig 返回默认编排配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		StageTimeout:    5 * time.Minute,
		WorkflowTimeout: 15 * time.Minute,
		MaxConcurrent:   16,
		HistorySize:     20,
		Store: StoreConfig{
			Type:      "memory",
			KeyPrefix: "docflow:workflow:",
			TTL:       24 * time.Hour,
		},
	}
}

// DefaultQualityConfig 返回默认质量分权重
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		CompletenessWeight: 0.40,
		AccuracyWeight:     0.35,
		ClarityWeight:      0.25,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		APIKey:           "",
		BaseURL:          "https://api.openai.com",
		Model:            "gpt-4o-mini",
		Temperature:      0.3,
		MaxTokens:        4096,
		MaxPromptTokens:  24000,
		Timeout:          300 * time.Second,
		MaxRetries:       1,
		RateLimitRPS:     2,
		RateLimitBurst:   4,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// DefaultGitHubConfig 返回默认仓库拉取配置
func DefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIBaseURL:       "https://api.github.com",
		FetchConcurrency: 8,
		MaxFiles:         200,
		MaxFileBytes:     256 * 1024,
		CacheTTL:         10 * time.Minute,
		Timeout:          60 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "docflow",
		Password:        "",
		Name:            "docflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:   "docflow",
		Collection: "artifacts",
		Timeout:    10 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "docflow",
		SampleRate:   0.1,
	}
}
