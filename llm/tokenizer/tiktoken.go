package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings 模型前缀到 tiktoken 编码的映射
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

func lookupEncoding(model string) (string, bool) {
	model = strings.ToLower(model)
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			return m.encoding, true
		}
	}
	return "", false
}

// tiktokenCounter 基于 tiktoken 的精确计数
type tiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback *Estimator
}

func newTiktoken(encoding string) *tiktokenCounter {
	return &tiktokenCounter{encoding: encoding, fallback: NewEstimator()}
}

// init 延迟加载编码数据（首次使用时可能需要下载）
func (t *tiktokenCounter) init() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err == nil {
			t.enc = enc
		}
	})
	return t.enc
}

func (t *tiktokenCounter) Count(text string) int {
	enc := t.init()
	if enc == nil {
		return t.fallback.Count(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *tiktokenCounter) Truncate(text string, maxTokens int) string {
	enc := t.init()
	if enc == nil {
		return t.fallback.Truncate(text, maxTokens)
	}
	if maxTokens <= 0 {
		return ""
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}

func (t *tiktokenCounter) Name() string {
	if t.init() == nil {
		return "estimator"
	}
	return "tiktoken[" + t.encoding + "]"
}
