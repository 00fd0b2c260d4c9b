package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

const testDoc = "# Widgets\n\n## Usage\n\n```go\nwidgets.Run()\n```\n"

func TestTranslationAgent_FallbackKeyedByCode(t *testing.T) {
	req := testRequest()
	req.TranslationLanguages = []string{"es", "french", "spanish"}
	wctx := workflow.NewContext("wf-1", req)
	wctx.Documentation = testDoc

	var tasks []string
	err := NewTranslationAgent(llm.NewFallbackProvider(), 0, nil).Run(context.Background(), wctx, func(_ int, task string) {
		tasks = append(tasks, task)
	})
	require.NoError(t, err)

	require.Len(t, wctx.Translations, 2)
	es := wctx.Translations["es"]
	assert.Equal(t, "spanish", es.Language)
	assert.Equal(t, "Español", es.NativeName)
	assert.True(t, es.Fallback)
	assert.Contains(t, es.Content, "# Spanish Translation / Español")
	assert.Contains(t, es.Content, "widgets.Run()")

	fr := wctx.Translations["fr"]
	assert.Equal(t, "French", fr.Name)
	assert.Equal(t, []string{"Translating to Spanish", "Translating to French", "Translations complete"}, tasks)
}

func TestTranslationAgent_LiveProvider(t *testing.T) {
	p := &recordingProvider{live: true, content: "# Widgets (de)"}
	req := testRequest()
	req.TranslationLanguages = []string{"de"}
	wctx := workflow.NewContext("wf-1", req)
	wctx.Documentation = testDoc

	require.NoError(t, NewTranslationAgent(p, 0, nil).Run(context.Background(), wctx, noProgress))
	de := wctx.Translations["de"]
	assert.False(t, de.Fallback)
	assert.Equal(t, "# Widgets (de)", de.Content)

	require.Len(t, p.reqs, 1)
	assert.Equal(t, llm.TaskTranslation, p.reqs[0].Task)
	assert.Contains(t, p.reqs[0].Prompt, "German (de)")
	assert.Contains(t, p.reqs[0].Prompt, testDoc)
}

// cancelAfterFirst 第一次生成后取消上下文
type cancelAfterFirst struct {
	recordingProvider
	cancel context.CancelFunc
}

func (p *cancelAfterFirst) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Completion, error) {
	c, err := p.recordingProvider.Generate(ctx, req)
	p.cancel()
	return c, err
}

func TestTranslationAgent_ChecksCancellationBetweenLanguages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &cancelAfterFirst{recordingProvider: recordingProvider{content: "x"}, cancel: cancel}

	req := testRequest()
	req.TranslationLanguages = []string{"es", "fr", "ja"}
	wctx := workflow.NewContext("wf-1", req)
	wctx.Documentation = testDoc

	err := NewTranslationAgent(p, 0, nil).Run(ctx, wctx, noProgress)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.reqs, 1)
	assert.Nil(t, wctx.Translations)
}

func TestTranslationAgent_Errors(t *testing.T) {
	t.Run("no documentation", func(t *testing.T) {
		wctx := workflow.NewContext("wf-1", testRequest())
		err := NewTranslationAgent(llm.NewFallbackProvider(), 0, nil).Run(context.Background(), wctx, noProgress)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidState))
	})

	t.Run("unknown language", func(t *testing.T) {
		req := testRequest()
		req.TranslationLanguages = []string{"klingon"}
		wctx := workflow.NewContext("wf-1", req)
		wctx.Documentation = testDoc
		err := NewTranslationAgent(llm.NewFallbackProvider(), 0, nil).Run(context.Background(), wctx, noProgress)
		te, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "translation_languages", te.Field)
	})

	t.Run("provider failure names language", func(t *testing.T) {
		upstream := types.NewUpstreamError("recording", "quota")
		wctx := workflow.NewContext("wf-1", testRequest())
		wctx.Documentation = testDoc
		err := NewTranslationAgent(&recordingProvider{err: upstream}, 0, nil).Run(context.Background(), wctx, noProgress)
		require.Error(t, err)
		assert.True(t, errors.Is(err, upstream))
		assert.Contains(t, err.Error(), "Spanish")
	})
}
