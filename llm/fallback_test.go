package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
)

func TestFallbackProvider_ReturnsTemplate(t *testing.T) {
	p := NewFallbackProvider()
	assert.False(t, p.Live())
	assert.Equal(t, FallbackName, p.Name())

	req := GenerateRequest{Task: TaskDocumentation, Prompt: "ignored", Template: "# Placeholder"}
	a, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "# Placeholder", a.Content)
	assert.Equal(t, a, b, "fallback output is deterministic")
	assert.Positive(t, a.CompletionTokens)
}

func TestFallbackProvider_EmptyTemplateEchoesPrompt(t *testing.T) {
	c, err := NewFallbackProvider().Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Content)
}

func TestFallbackProvider_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFallbackProvider().Generate(ctx, GenerateRequest{Template: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewContentProvider(t *testing.T) {
	cfg := config.DefaultLLMConfig()
	assert.IsType(t, &FallbackProvider{}, NewContentProvider(cfg, zap.NewNop()))

	cfg.APIKey = "sk-live"
	p := NewContentProvider(cfg, nil)
	assert.IsType(t, &LiveProvider{}, p)
	assert.True(t, p.Live())
}
