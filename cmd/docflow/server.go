package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docflow/api/handlers"
	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/cache"
	"github.com/BaSui01/docflow/internal/metrics"
	"github.com/BaSui01/docflow/internal/server"
	"github.com/BaSui01/docflow/internal/telemetry"
	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/repo"
	"github.com/BaSui01/docflow/stages"
	"github.com/BaSui01/docflow/storage"
	"github.com/BaSui01/docflow/workflow"
	"github.com/BaSui01/docflow/workflow/store"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the DocFlow HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting DocFlow",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			err = srv.Run(ctx)
			logger.Info("DocFlow stopped")
			return err
		},
	}
}

// =============================================================================
// 🧩 Server
// =============================================================================

// Server 持有全部运行期组件
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers
	registry  *prometheus.Registry
	collector *metrics.Collector

	cache     *cache.Manager
	store     store.Store
	artifacts storage.Store

	manager   *workflow.Manager
	assembler *workflow.ResultAssembler
	pipeline  *stages.Pipeline

	// LLM 熔断器就绪检查，demo 模式为空
	llmReady func(context.Context) error

	handler http.Handler

	// 限流清理 goroutine 生命周期
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer 按配置装配服务：缓存 → 状态存储 → 产物存储 → 流水线 → 管理器 → 路由
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: logger}

	otelProviders, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = otelProviders

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("docflow", s.registry, logger)

	if err := s.initStores(ctx); err != nil {
		s.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	s.initWorkflow()

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.handler = s.routes(baseCtx)
	return s, nil
}

// initStores 连接 Redis、状态存储与产物存储
func (s *Server) initStores(ctx context.Context) error {
	storeCfg := s.cfg.Workflow.Store
	needRedis := storeCfg.Type == store.TypeRedis
	wantCache := !s.cfg.GitHub.Offline && s.cfg.GitHub.CacheTTL > 0 && s.cfg.Redis.Addr != ""

	if needRedis || wantCache {
		cm, err := cache.NewManager(cache.FromRedisConfig(s.cfg.Redis), s.logger)
		switch {
		case err == nil:
			s.cache = cm
		case needRedis:
			return fmt.Errorf("redis status store: %w", err)
		default:
			s.logger.Warn("Redis not available, repository cache disabled", zap.Error(err))
		}
	}

	st, err := store.New(storeCfg, s.redisClient(), s.logger)
	if err != nil {
		return fmt.Errorf("status store: %w", err)
	}
	s.store = st

	artifacts, err := storage.Open(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("artifact storage: %w", err)
	}
	s.artifacts = artifacts
	if gs, ok := artifacts.(*storage.GormStore); ok {
		driver := s.cfg.Database.Driver
		gs.Pool().OnStats(func(st sql.DBStats) {
			s.collector.RecordDBConnections(driver, st.OpenConnections, st.Idle)
		})
	}
	return nil
}

func (s *Server) redisClient() *redis.Client {
	if s.cache == nil {
		return nil
	}
	return s.cache.Client()
}

// initWorkflow 构建拉取器、内容提供方、阶段流水线和管理器
func (s *Server) initWorkflow() {
	var fetcher repo.Fetcher
	if s.cfg.GitHub.Offline {
		fetcher = repo.NewSampleFetcher()
		s.logger.Info("GitHub offline mode, serving sample repositories")
	} else {
		fetcher = repo.NewGitHubFetcher(s.cfg.GitHub, s.logger)
		if s.cache != nil {
			snapshots := metrics.InstrumentCache(s.cache, s.collector, "repository")
			fetcher = repo.NewCachedFetcher(fetcher, snapshots, s.cfg.GitHub.CacheTTL, s.logger)
		}
	}
	fetcher = metrics.InstrumentFetcher(fetcher, s.collector)

	content := llm.NewContentProvider(s.cfg.LLM, s.logger)
	if live, ok := content.(*llm.LiveProvider); ok {
		s.llmReady = live.Ready
	}
	provider := metrics.InstrumentProvider(content, s.collector)
	s.pipeline = stages.NewPipeline(fetcher, provider, s.cfg.LLM.MaxTokens, s.logger)

	s.assembler = workflow.NewResultAssembler(workflow.Weights{
		Completeness: s.cfg.Quality.CompletenessWeight,
		Accuracy:     s.cfg.Quality.AccuracyWeight,
		Clarity:      s.cfg.Quality.ClarityWeight,
	})

	orchOpts := []workflow.OrchestratorOption{
		workflow.WithLogger(s.logger),
		workflow.WithMetrics(s.collector),
	}
	mgrOpts := []workflow.ManagerOption{
		workflow.WithAIPowered(s.pipeline.AIPowered),
		workflow.WithFeedbackCollector(s.pipeline.Feedback),
		workflow.WithManagerLogger(s.logger),
		workflow.WithFeedbackObserver(s.collector),
	}
	if s.artifacts != nil {
		orchOpts = append(orchOpts, workflow.WithArtifactSink(s.artifacts))
		mgrOpts = append(mgrOpts, workflow.WithFeedbackSink(s.artifacts))
	}

	orch := workflow.NewOrchestrator(s.store, s.pipeline.Registry, s.assembler, workflow.OrchestratorConfig{
		StageTimeout:    s.cfg.Workflow.StageTimeout,
		WorkflowTimeout: s.cfg.Workflow.WorkflowTimeout,
		MaxConcurrent:   s.cfg.Workflow.MaxConcurrent,
		HistorySize:     s.cfg.Workflow.HistorySize,
	}, orchOpts...)
	s.manager = workflow.NewManager(s.store, orch, mgrOpts...)

	s.logger.Info("Workflow engine initialized",
		zap.Bool("ai_powered", s.pipeline.AIPowered),
		zap.String("provider", s.pipeline.Catalog.ProviderName()),
		zap.String("status_store", s.cfg.Workflow.Store.Type),
		zap.String("artifacts", s.cfg.Artifacts.Backend),
	)
}

// =============================================================================
// 🌐 路由
// =============================================================================

func (s *Server) routes(ctx context.Context) http.Handler {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewPingCheck("status_store", s.store.Ping))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}
	if s.artifacts != nil {
		health.RegisterCheck(handlers.NewPingCheck("artifacts", s.artifacts.Ping))
	}
	if s.llmReady != nil {
		health.RegisterCheck(handlers.NewPingCheck("llm", s.llmReady))
	}

	wf := handlers.NewWorkflowHandler(s.manager, s.assembler, s.logger)
	agents := handlers.NewAgentsHandler(s.pipeline.Catalog)
	auth := handlers.NewAuthHandler(repo.NewOAuth(s.cfg.GitHub), s.logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /generate", wf.HandleGenerate)
	mux.HandleFunc("GET /status/{id}", wf.HandleStatus)
	mux.HandleFunc("POST /stop-workflow", wf.HandleStop)
	mux.HandleFunc("POST /feedback", wf.HandleFeedback)
	mux.HandleFunc("GET /workflows", wf.HandleList)
	mux.HandleFunc("GET /download/{id}", wf.HandleDownload)
	mux.HandleFunc("GET /translation/languages", handlers.HandleLanguages)
	mux.HandleFunc("GET /agents/status", agents.HandleStatus)

	mux.HandleFunc("GET /auth/github/config", auth.HandleGitHubConfig)
	mux.HandleFunc("POST /auth/github/token", auth.HandleGitHubToken)

	sc := s.cfg.Server
	publicPaths := []string{"/health", "/healthz", "/ready", "/version", "/auth/github/config", "/auth/github/token"}
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		OTelTracing(),
		CORS(sc.CORSAllowedOrigins),
		RateLimiter(ctx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.logger),
		APIKeyAuth(sc.APIKeys, publicPaths, sc.AllowQueryAPIKey, s.logger),
		JWTAuth(sc.JWT, publicPaths, s.logger),
	)
}

// Handler 返回完整中间件链包装后的路由
func (s *Server) Handler() http.Handler { return s.handler }

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 HTTP 与 Metrics 服务器，ctx 取消后优雅关闭全部组件
func (s *Server) Run(ctx context.Context) error {
	defer s.Close(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)

	httpMgr := server.NewManager(s.handler, server.FromServerConfig(s.cfg.Server), s.logger)
	g.Go(func() error { return httpMgr.Run(gctx) })

	if mc, ok := server.MetricsConfig(s.cfg.Server); ok {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
		metricsMgr := server.NewManager(mux, mc, s.logger)
		g.Go(func() error { return metricsMgr.Run(gctx) })
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close 按依赖逆序关闭：工作流 → 存储 → 缓存 → 遥测
func (s *Server) Close(ctx context.Context) {
	s.closeOnce.Do(func() { s.close(ctx) })
}

func (s *Server) close(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")
	if s.cancel != nil {
		s.cancel()
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.manager != nil {
		if err := s.manager.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Workflow manager shutdown error", zap.Error(err))
		}
	}
	if s.artifacts != nil {
		if err := s.artifacts.Close(); err != nil {
			s.logger.Error("Artifact storage close error", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Status store close error", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}
	if err := s.telemetry.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
