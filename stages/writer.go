package stages

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

const (
	promptListLimit = 10
	promptDepsLimit = 15
)

// audienceGuidance 不同读者的写作要求
var audienceGuidance = map[string]string{
	workflow.AudienceDevelopers:       "Focus on architecture, public APIs and code-level detail. Assume familiarity with the language.",
	workflow.AudienceBeginners:        "Explain concepts step by step. Define terms on first use and prefer small complete examples.",
	workflow.AudienceTechnicalWriters: "Provide precise, well-organized reference material that can be edited into a product manual.",
	workflow.AudienceArchitects:       "Emphasize system design, component boundaries and integration points.",
	workflow.AudienceEndUsers:         "Describe what the project does and how to use it. Avoid internal implementation detail.",
}

const docSystemPrompt = "You are a senior technical writer. Produce accurate, well-structured Markdown documentation."

// DocWriter 生成 Markdown 文档
type DocWriter struct {
	provider  llm.ContentProvider
	maxTokens int
	logger    *zap.Logger
}

// NewDocWriter 创建文档撰写阶段；maxTokens 为 0 时使用 provider 默认值
func NewDocWriter(provider llm.ContentProvider, maxTokens int, logger *zap.Logger) *DocWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocWriter{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logger.With(zap.String("stage", workflow.StageDocWriter)),
	}
}

func (w *DocWriter) Name() string { return workflow.StageDocWriter }

// Run 写入 wctx.Documentation
func (w *DocWriter) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	if wctx.Analysis == nil {
		return types.NewError(types.ErrInvalidState, "documentation requires a repository analysis")
	}

	report(10, "Preparing documentation prompt")
	req := llm.GenerateRequest{
		Task:      llm.TaskDocumentation,
		System:    docSystemPrompt,
		Prompt:    documentationPrompt(wctx.Request, wctx.Analysis),
		MaxTokens: w.maxTokens,
		Template:  templateDocumentation(wctx.Request, wctx.Analysis),
	}

	report(30, "Generating documentation")
	c, err := w.provider.Generate(ctx, req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Content) == "" {
		return types.NewUpstreamError(w.provider.Name(), "content provider returned empty documentation")
	}

	wctx.Documentation = c.Content
	if wctx.Metadata == nil {
		wctx.Metadata = make(map[string]any)
	}
	wctx.Metadata["documentation"] = map[string]any{
		"provider":          c.Provider,
		"model":             c.Model,
		"prompt_tokens":     c.PromptTokens,
		"completion_tokens": c.CompletionTokens,
		"prompt_truncated":  c.Truncated,
	}
	w.logger.Info("documentation generated",
		zap.String("workflow_id", wctx.WorkflowID),
		zap.String("provider", c.Provider),
		zap.Int("completion_tokens", c.CompletionTokens),
		zap.Bool("truncated", c.Truncated))

	report(100, "Documentation complete")
	return nil
}

func documentationPrompt(req workflow.Request, a *workflow.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate comprehensive technical documentation for the project %q.\n\n", req.ProjectID)
	b.WriteString("PROJECT ANALYSIS DATA:\n")
	fmt.Fprintf(&b, "- Repository: %s\n", req.RepositoryURL)
	fmt.Fprintf(&b, "- Total Files: %d\n", a.FileCount)
	fmt.Fprintf(&b, "- Lines of Code: %d\n", a.LinesOfCode)
	fmt.Fprintf(&b, "- Primary Language: %s\n", orDefault(a.PrimaryLanguage, "unknown"))
	fmt.Fprintf(&b, "- Functions: %d\n", len(a.Functions))
	fmt.Fprintf(&b, "- Classes: %d\n", len(a.Classes))
	fmt.Fprintf(&b, "- Dependencies: %d\n", len(a.Dependencies))
	fmt.Fprintf(&b, "- API Endpoints: %d\n\n", len(a.APIEndpoints))

	fmt.Fprintf(&b, "TARGET AUDIENCE: %s\n", req.TargetAudience)
	if g, ok := audienceGuidance[req.TargetAudience]; ok {
		b.WriteString(g + "\n")
	}

	b.WriteString(`
REQUIREMENTS:
1. Write Markdown with ## for main sections and ### for subsections
2. Use fenced code blocks with a language tag for every example
3. Include these sections: Project Overview, Installation, Architecture Overview,
   API Reference (if applicable), Usage Examples, Configuration, Development Setup,
   Testing, Troubleshooting, Contributing
`)

	if len(a.Functions) > 0 {
		fmt.Fprintf(&b, "\nKEY FUNCTIONS (%d total):\n", len(a.Functions))
		for _, f := range head(a.Functions, promptListLimit) {
			fmt.Fprintf(&b, "- %s(%s) in %s\n", f.Name, strings.Join(f.Parameters, ", "), f.File)
		}
	}
	if len(a.Classes) > 0 {
		fmt.Fprintf(&b, "\nKEY CLASSES (%d total):\n", len(a.Classes))
		for _, c := range head(a.Classes, promptListLimit) {
			fmt.Fprintf(&b, "- %s in %s\n", c.Name, c.File)
		}
	}
	if len(a.APIEndpoints) > 0 {
		fmt.Fprintf(&b, "\nAPI ENDPOINTS (%d total):\n", len(a.APIEndpoints))
		for _, e := range head(a.APIEndpoints, promptListLimit) {
			fmt.Fprintf(&b, "- %s %s\n", e.Method, e.Path)
		}
	}
	if len(a.Dependencies) > 0 {
		fmt.Fprintf(&b, "\nKEY DEPENDENCIES (%d total):\n", len(a.Dependencies))
		for _, d := range head(a.Dependencies, promptDepsLimit) {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	b.WriteString("\nGenerate complete documentation that developers can use immediately to understand, install, configure and contribute to this project.\n")
	return b.String()
}

// templateDocumentation 离线模式下的确定性文档
func templateDocumentation(req workflow.Request, a *workflow.Analysis) string {
	name := req.ProjectID
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", name)
	b.WriteString("## Project Overview\n\n")
	fmt.Fprintf(&b, "This is automatically generated documentation for **%s** (%s).\n\n", name, req.RepositoryURL)

	b.WriteString("## Project Statistics\n\n")
	fmt.Fprintf(&b, "- **Total Files**: %d\n", a.FileCount)
	fmt.Fprintf(&b, "- **Lines of Code**: %d\n", a.LinesOfCode)
	fmt.Fprintf(&b, "- **Primary Language**: %s\n", orDefault(a.PrimaryLanguage, "unknown"))
	fmt.Fprintf(&b, "- **Functions**: %d\n", len(a.Functions))
	fmt.Fprintf(&b, "- **Classes**: %d\n", len(a.Classes))
	fmt.Fprintf(&b, "- **Dependencies**: %d\n\n", len(a.Dependencies))

	b.WriteString("## Installation\n\n```bash\n")
	b.WriteString("# Clone the repository\n")
	fmt.Fprintf(&b, "git clone %s\n", req.RepositoryURL)
	fmt.Fprintf(&b, "cd %s\n```\n\n", strings.ReplaceAll(strings.ToLower(name), " ", "-"))

	b.WriteString("## Architecture Overview\n\nThis project contains:\n\n")
	if len(a.Structure) > 0 {
		b.WriteString("### Structure\n\n")
		for _, dir := range sortedKeys(a.Structure) {
			fmt.Fprintf(&b, "- `%s/`: %s\n", dir, strings.Join(a.Structure[dir], ", "))
		}
		b.WriteString("\n")
	}
	if len(a.Functions) > 0 {
		fmt.Fprintf(&b, "### Functions (%d)\n\n", len(a.Functions))
		for _, f := range head(a.Functions, promptListLimit) {
			fmt.Fprintf(&b, "- `%s(%s)`", f.Name, strings.Join(f.Parameters, ", "))
			if f.Docstring != "" {
				fmt.Fprintf(&b, ": %s", f.Docstring)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(a.Classes) > 0 {
		fmt.Fprintf(&b, "### Classes (%d)\n\n", len(a.Classes))
		for _, c := range head(a.Classes, promptListLimit) {
			fmt.Fprintf(&b, "- `%s`", c.Name)
			if len(c.Methods) > 0 {
				fmt.Fprintf(&b, " with methods %s", strings.Join(c.Methods, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(a.Dependencies) > 0 {
		fmt.Fprintf(&b, "### Dependencies (%d)\n\n", len(a.Dependencies))
		for _, d := range head(a.Dependencies, promptDepsLimit) {
			fmt.Fprintf(&b, "- `%s`\n", d)
		}
		b.WriteString("\n")
	}

	if len(a.APIEndpoints) > 0 {
		b.WriteString("## API Reference\n\n| Method | Path | Handler |\n|---|---|---|\n")
		for _, e := range a.APIEndpoints {
			fmt.Fprintf(&b, "| %s | `%s` | %s |\n", e.Method, e.Path, orDefault(e.Function, "-"))
		}
		b.WriteString("\n")
	}

	lang := codeFence(a.PrimaryLanguage)
	b.WriteString("## Usage\n\n")
	fmt.Fprintf(&b, "```%s\n%s Add usage examples here\n```\n\n", lang, commentPrefix(lang))
	b.WriteString("## Configuration\n\nConfiguration details will be added based on project analysis.\n\n")
	b.WriteString("## Development\n\n```bash\n# Development setup commands\n```\n\n")
	b.WriteString("## Testing\n\n```bash\n# Testing commands\n```\n\n")
	b.WriteString("## Contributing\n\n1. Fork the repository\n2. Create a feature branch\n3. Make your changes\n4. Submit a pull request\n\n")
	b.WriteString("## License\n\nPlease check the project repository for license information.\n\n")
	b.WriteString("---\n\n*Note: this documentation was generated in demo mode. Configure a content provider API key for AI-written documentation.*\n")
	return b.String()
}

func codeFence(lang string) string {
	switch lang {
	case "", "c", "cpp":
		return orDefault(lang, "text")
	default:
		return lang
	}
}

func commentPrefix(lang string) string {
	switch lang {
	case "python", "ruby", "text":
		return "#"
	default:
		return "//"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
