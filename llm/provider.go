package llm

import "context"

// 生成任务类型，用于日志与指标
const (
	TaskDocumentation = "documentation"
	TaskTranslation   = "translation"
	TaskReview        = "review"
)

// GenerateRequest 一次内容生成请求
type GenerateRequest struct {
	// Task 任务类型
	Task string
	// System 系统提示词
	System string
	// Prompt 用户提示词，超出 token 预算时被截断
	Prompt string
	// MaxTokens 输出上限，0 表示使用 provider 默认值
	MaxTokens int
	// Template 离线模式下返回的确定性内容
	Template string
}

// Completion 生成结果
type Completion struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	// Truncated 提示词是否因预算被截断
	Truncated bool `json:"truncated"`
}

// ContentProvider 内容生成接口
type ContentProvider interface {
	// Name 返回 provider 名称
	Name() string
	// Live 是否调用真实的生成服务
	Live() bool
	// Generate 生成内容。调用阻塞直到完成或 ctx 结束。
	Generate(ctx context.Context, req GenerateRequest) (*Completion, error)
}
