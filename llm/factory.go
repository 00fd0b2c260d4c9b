package llm

import (
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
)

// NewContentProvider 根据配置选择 provider：配置了 API Key 时使用在线模式，否则使用离线模板
func NewContentProvider(cfg config.LLMConfig, logger *zap.Logger) ContentProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		logger.Warn("no content provider API key configured, running in demo mode")
		return NewFallbackProvider()
	}
	logger.Info("content provider configured",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))
	return NewLiveProvider(cfg, logger)
}
