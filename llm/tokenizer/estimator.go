package tokenizer

// 以 1/12 token 为单位：CJK 字符约 1.5 字符/token，其余约 4 字符/token
const (
	cjkUnits   = 8
	otherUnits = 3
	tokenUnits = 12
)

// Estimator 基于字符数的 token 估算器，区分 CJK 与 ASCII 字符
type Estimator struct{}

// NewEstimator 创建估算器
func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	units := 0
	for _, r := range text {
		units += runeUnits(r)
	}
	if n := units / tokenUnits; n > 0 {
		return n
	}
	return 1
}

func (e *Estimator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * tokenUnits
	units := 0
	for i, r := range text {
		units += runeUnits(r)
		if units > limit {
			return text[:i]
		}
	}
	return text
}

func (e *Estimator) Name() string { return "estimator" }

func runeUnits(r rune) int {
	if isCJK(r) {
		return cjkUnits
	}
	return otherUnits
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0x3040 && r <= 0x30FF) || // Hiragana, Katakana
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
