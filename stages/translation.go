package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

const translationSystemPrompt = "You are a professional technical translator. Preserve Markdown structure and never translate code."

// TranslationAgent 逐语言翻译文档
type TranslationAgent struct {
	provider  llm.ContentProvider
	maxTokens int
	logger    *zap.Logger
}

// NewTranslationAgent 创建翻译阶段
func NewTranslationAgent(provider llm.ContentProvider, maxTokens int, logger *zap.Logger) *TranslationAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranslationAgent{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logger.With(zap.String("stage", workflow.StageTranslation)),
	}
}

func (t *TranslationAgent) Name() string { return workflow.StageTranslation }

// Run 写入 wctx.Translations，按语言代码索引
func (t *TranslationAgent) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	if strings.TrimSpace(wctx.Documentation) == "" {
		return types.NewError(types.ErrInvalidState, "translation requires generated documentation")
	}

	langs := make([]workflow.Language, 0, len(wctx.Request.TranslationLanguages))
	seen := make(map[string]bool)
	for _, key := range wctx.Request.TranslationLanguages {
		l, ok := workflow.LookupLanguage(key)
		if !ok {
			return types.NewValidationError("translation_languages", fmt.Sprintf("unsupported language %q", key))
		}
		if !seen[l.Code] {
			seen[l.Code] = true
			langs = append(langs, l)
		}
	}

	out := make(map[string]workflow.Translation, len(langs))
	for i, l := range langs {
		// 每种语言之间检查取消
		if err := ctx.Err(); err != nil {
			return err
		}
		report(i*100/len(langs), "Translating to "+l.Name)

		c, err := t.provider.Generate(ctx, llm.GenerateRequest{
			Task:      llm.TaskTranslation,
			System:    translationSystemPrompt,
			Prompt:    translationPrompt(wctx.Documentation, l),
			MaxTokens: t.maxTokens,
			Template:  templateTranslation(wctx.Documentation, l),
		})
		if err != nil {
			return fmt.Errorf("translate to %s: %w", l.Name, err)
		}
		if strings.TrimSpace(c.Content) == "" {
			return types.NewUpstreamError(t.provider.Name(), "content provider returned an empty "+l.Name+" translation")
		}

		out[l.Code] = workflow.Translation{
			Language:   l.Key,
			Code:       l.Code,
			Name:       l.Name,
			NativeName: l.NativeName,
			Content:    c.Content,
			Fallback:   !t.provider.Live(),
		}
		t.logger.Debug("translation generated",
			zap.String("workflow_id", wctx.WorkflowID),
			zap.String("language", l.Code),
			zap.Int("completion_tokens", c.CompletionTokens))
	}

	wctx.Translations = out
	report(100, "Translations complete")
	return nil
}

func translationPrompt(content string, l workflow.Language) string {
	return fmt.Sprintf(`Translate the following technical documentation to %s (%s).

TRANSLATION REQUIREMENTS:
1. Maintain all Markdown formatting exactly
2. Preserve all code blocks unchanged
3. Keep all URLs and links intact
4. Translate technical terms appropriately for %s developers
5. Keep section headers clear and consistent

CONTENT TO TRANSLATE:

%s

Provide the complete translated documentation with the same structure.`, l.Name, l.Code, l.Name, content)
}

// templateTranslation 离线模式下的占位译文，保留原文
func templateTranslation(content string, l workflow.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Translation / %s\n\n", l.Name, l.NativeName)
	fmt.Fprintf(&b, "> This is a placeholder %s translation generated in demo mode. ", l.Name)
	b.WriteString("Configure a content provider API key for full translation.\n\n")
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "**Translation status**: demo mode\n**Target language**: %s (%s)\n", l.Name, l.Code)
	return b.String()
}
