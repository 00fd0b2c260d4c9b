// =============================================================================
// 📦 DocFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DOCFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DocFlow 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Workflow 编排引擎配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Quality 质量评分权重
	Quality QualityConfig `yaml:"quality" env:"QUALITY"`

	// LLM 内容生成服务配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// GitHub 仓库拉取配置
	GitHub GitHubConfig `yaml:"github" env:"GITHUB"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Mongo 文档存储配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Artifacts 产物与反馈存储配置
	Artifacts ArtifactsConfig `yaml:"artifacts" env:"ARTIFACTS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个 IP 每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// API Key 列表，为空时不启用认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 query 参数传 API Key
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// JWT 认证
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
	// TLS 证书，与 TLSKeyFile 同时设置时启用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	// TLS 私钥
	TLSKeyFile string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	// HMAC 密钥，为空时不启用 JWT
	Secret string `yaml:"secret" env:"SECRET"`
	// 签发者校验
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 受众校验
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// WorkflowConfig 编排引擎配置
type WorkflowConfig struct {
	// 单阶段超时
	StageTimeout time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
	// 整个工作流超时
	WorkflowTimeout time.Duration `yaml:"workflow_timeout" env:"WORKFLOW_TIMEOUT"`
	// 同时运行的最大工作流数
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 保留的状态转换历史条数
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
	// 状态存储
	Store StoreConfig `yaml:"store" env:"STORE"`
}

// StoreConfig 状态存储配置
type StoreConfig struct {
	// 类型: memory, redis, badger
	Type string `yaml:"type" env:"TYPE"`
	// Redis key 前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 快照保留时长（redis），0 表示不过期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Badger 数据目录
	BadgerPath string `yaml:"badger_path" env:"BADGER_PATH"`
}

// QualityConfig 质量分权重
type QualityConfig struct {
	CompletenessWeight float64 `yaml:"completeness_weight" env:"COMPLETENESS_WEIGHT"`
	AccuracyWeight     float64 `yaml:"accuracy_weight" env:"ACCURACY_WEIGHT"`
	ClarityWeight      float64 `yaml:"clarity_weight" env:"CLARITY_WEIGHT"`
}

// LLMConfig 内容生成服务配置
type LLMConfig struct {
	// API Key，为空时使用 fallback 模式
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// OpenAI 兼容接口地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大输出 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 输入 Token 上限，超出时截断提示词
	MaxPromptTokens int `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 瞬时错误重试次数（0 或 1）
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 每秒请求数
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 熔断阈值
	BreakerThreshold int `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	// 熔断恢复时间
	BreakerTimeout time.Duration `yaml:"breaker_timeout" env:"BREAKER_TIMEOUT"`
}

// GitHubConfig 仓库拉取配置
type GitHubConfig struct {
	// REST API 地址
	APIBaseURL string `yaml:"api_base_url" env:"API_BASE_URL"`
	// 默认访问令牌（请求未携带时使用）
	Token string `yaml:"token" env:"TOKEN"`
	// 离线模式，使用内置示例仓库
	Offline bool `yaml:"offline" env:"OFFLINE"`
	// 并发拉取文件数
	FetchConcurrency int `yaml:"fetch_concurrency" env:"FETCH_CONCURRENCY"`
	// 最多分析的文件数
	MaxFiles int `yaml:"max_files" env:"MAX_FILES"`
	// 单文件大小上限（字节）
	MaxFileBytes int `yaml:"max_file_bytes" env:"MAX_FILE_BYTES"`
	// 拉取结果缓存时长，0 表示不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// OAuth 应用
	OAuthClientID     string `yaml:"oauth_client_id" env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `yaml:"oauth_client_secret" env:"OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL  string `yaml:"oauth_redirect_url" env:"OAUTH_REDIRECT_URL"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI        string        `yaml:"uri" env:"URI"`
	Database   string        `yaml:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ArtifactsConfig 产物存储配置
type ArtifactsConfig struct {
	// 后端: none, database, mongo
	Backend string `yaml:"backend" env:"BACKEND"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DOCFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration 按时长解析
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tls_cert_file and server.tls_key_file must be set together")
	}

	if c.Workflow.StageTimeout <= 0 {
		errs = append(errs, "workflow.stage_timeout must be positive")
	}
	if c.Workflow.WorkflowTimeout <= 0 {
		errs = append(errs, "workflow.workflow_timeout must be positive")
	}
	if c.Workflow.MaxConcurrent <= 0 {
		errs = append(errs, "workflow.max_concurrent must be positive")
	}
	switch c.Workflow.Store.Type {
	case "memory", "redis", "badger":
	default:
		errs = append(errs, fmt.Sprintf("unknown workflow.store.type %q", c.Workflow.Store.Type))
	}
	if c.Workflow.Store.Type == "badger" && c.Workflow.Store.BadgerPath == "" {
		errs = append(errs, "workflow.store.badger_path is required for badger store")
	}

	q := c.Quality
	if q.CompletenessWeight < 0 || q.AccuracyWeight < 0 || q.ClarityWeight < 0 {
		errs = append(errs, "quality weights must be non-negative")
	} else if sum := q.CompletenessWeight + q.AccuracyWeight + q.ClarityWeight; sum == 0 || math.IsNaN(sum) {
		errs = append(errs, "quality weights must not all be zero")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 1 {
		errs = append(errs, "llm.max_retries must be 0 or 1")
	}

	switch c.Artifacts.Backend {
	case "", "none", "database":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, "mongo.uri is required for mongo artifacts backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown artifacts.backend %q", c.Artifacts.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
