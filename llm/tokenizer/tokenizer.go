package tokenizer

import "strings"

// Counter 统一的 Token 计数接口
type Counter interface {
	// Count 返回文本的 token 数
	Count(text string) int

	// Truncate 将文本截断到至多 maxTokens 个 token
	Truncate(text string, maxTokens int) string

	// Name 返回分词器名称
	Name() string
}

// TruncationMarker 截断后追加到文本末尾的标记
const TruncationMarker = "\n\n[... truncated ...]"

// ForModel 返回模型对应的分词器。
// OpenAI 系列模型使用 tiktoken，编码数据不可用时退回估算器。
func ForModel(model string) Counter {
	if enc, ok := lookupEncoding(model); ok {
		return newTiktoken(enc)
	}
	return NewEstimator()
}

// Fit 在超出预算时截断文本并追加标记，返回结果与是否发生截断
func Fit(c Counter, text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || c.Count(text) <= maxTokens {
		return text, false
	}
	budget := maxTokens - c.Count(TruncationMarker)
	if budget < 0 {
		budget = 0
	}
	cut := strings.TrimRightFunc(c.Truncate(text, budget), func(r rune) bool { return r == ' ' || r == '\n' })
	return cut + TruncationMarker, true
}
