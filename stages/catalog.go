package stages

import (
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/repo"
	"github.com/BaSui01/docflow/workflow"
)

// AgentInfo 阶段能力描述
type AgentInfo struct {
	ID           string   `json:"agent_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Status       string   `json:"status"`
	Optional     bool     `json:"optional"`
	UsesProvider bool     `json:"uses_content_provider"`
}

var agentInfos = []AgentInfo{
	{
		ID:           workflow.StageCodeAnalyzer,
		Description:  "Fetches the repository and extracts functions, classes, dependencies and API routes",
		Capabilities: []string{"repository_fetch", "code_parsing", "dependency_detection", "route_detection"},
	},
	{
		ID:           workflow.StageDocWriter,
		Description:  "Writes Markdown documentation for the requested audience",
		Capabilities: []string{"markdown_generation", "audience_targeting"},
		UsesProvider: true,
	},
	{
		ID:           workflow.StageDiagramGenerator,
		Description:  "Draws Mermaid structure, class, sequence and dependency diagrams",
		Capabilities: []string{"mermaid_structure", "mermaid_class", "mermaid_sequence", "mermaid_dependencies"},
		Optional:     true,
	},
	{
		ID:           workflow.StageTranslation,
		Description:  "Translates the documentation into the requested languages",
		Capabilities: []string{"translation"},
		Optional:     true,
		UsesProvider: true,
	},
	{
		ID:           workflow.StageQualityReviewer,
		Description:  "Scores the documentation and suggests improvements",
		Capabilities: []string{"quality_scoring", "suggestions"},
	},
	{
		ID:           workflow.StageFeedbackCollector,
		Description:  "Records user feedback on completed workflows",
		Capabilities: []string{"feedback_collection", "rating_aggregation"},
	},
}

// Catalog 描述所有阶段，供 /agents/status 展示
type Catalog struct {
	registry workflow.Registry
	provider llm.ContentProvider
}

// NewCatalog 创建目录；registry 中缺失的阶段标记为 unavailable
func NewCatalog(registry workflow.Registry, provider llm.ContentProvider) *Catalog {
	return &Catalog{registry: registry, provider: provider}
}

// Agents 按流水线顺序返回能力描述
func (c *Catalog) Agents() []AgentInfo {
	out := make([]AgentInfo, 0, len(agentInfos))
	for _, info := range agentInfos {
		info.Name = workflow.StageDisplayName(info.ID)
		info.Capabilities = append([]string(nil), info.Capabilities...)
		info.Status = "ready"
		if _, ok := c.registry[info.ID]; !ok {
			info.Status = "unavailable"
		}
		out = append(out, info)
	}
	return out
}

// Mode 返回 "ai" 或 "demo"
func (c *Catalog) Mode() string {
	if c.provider != nil && c.provider.Live() {
		return "ai"
	}
	return "demo"
}

// ProviderName 返回内容 provider 名称
func (c *Catalog) ProviderName() string {
	if c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Pipeline 一套完整的阶段实现
type Pipeline struct {
	Registry  workflow.Registry
	Feedback  *FeedbackCollector
	Catalog   *Catalog
	AIPowered bool
}

// NewPipeline 组装全部阶段
func NewPipeline(fetcher repo.Fetcher, provider llm.ContentProvider, maxTokens int, logger *zap.Logger) *Pipeline {
	feedback := NewFeedbackCollector(logger)
	reg := workflow.NewRegistry(
		NewCodeAnalyzer(fetcher, logger),
		NewDocWriter(provider, maxTokens, logger),
		NewDiagramGenerator(logger),
		NewTranslationAgent(provider, maxTokens, logger),
		NewQualityReviewer(logger),
	)
	catalogReg := make(workflow.Registry, len(reg)+1)
	for k, v := range reg {
		catalogReg[k] = v
	}
	catalogReg[feedback.Name()] = feedback

	return &Pipeline{
		Registry:  reg,
		Feedback:  feedback,
		Catalog:   NewCatalog(catalogReg, provider),
		AIPowered: provider.Live(),
	}
}
