package stages

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

const maxSuggestions = 5

var (
	technicalTerms  = []string{"class", "function", "method", "api", "endpoint", "parameter", "return", "import"}
	expectedSection = []string{"installation", "usage", "api", "example", "overview", "getting started"}
)

// QualityReviewer 对生成的文档做启发式评估
type QualityReviewer struct {
	logger *zap.Logger
}

// NewQualityReviewer 创建质量评审阶段
func NewQualityReviewer(logger *zap.Logger) *QualityReviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualityReviewer{logger: logger.With(zap.String("stage", workflow.StageQualityReviewer))}
}

func (r *QualityReviewer) Name() string { return workflow.StageQualityReviewer }

// Run 写入 wctx.Quality；总分由 ResultAssembler 按权重计算
func (r *QualityReviewer) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	if strings.TrimSpace(wctx.Documentation) == "" {
		return types.NewError(types.ErrInvalidState, "quality review requires generated documentation")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	report(20, "Scoring documentation")
	s := measure(wctx.Documentation)
	q := &workflow.Quality{
		Completeness: s.completeness(),
		Accuracy:     s.accuracy(),
		Clarity:      s.readability(),
		ReviewScore:  s.reviewScore(),
	}
	q.Metrics = map[string]float64{
		"completeness": q.Completeness,
		"accuracy":     q.Accuracy,
		"readability":  q.Clarity,
		"consistency":  s.consistency(),
		"headers":      float64(s.headers),
		"code_blocks":  float64(s.codeBlocks),
		"word_count":   float64(s.words),
	}

	report(70, "Collecting suggestions")
	q.Suggestions = s.suggestions(q)
	wctx.Quality = q
	wctx.AddSuggestions(q.Suggestions...)

	r.logger.Debug("documentation reviewed",
		zap.String("workflow_id", wctx.WorkflowID),
		zap.Float64("review_score", q.ReviewScore),
		zap.Int("suggestions", len(q.Suggestions)))
	report(100, "Review complete")
	return nil
}

// docStats 文档统计
type docStats struct {
	raw        string
	lower      string
	headers    int
	h2         int
	codeBlocks int
	words      int
}

func measure(doc string) docStats {
	lower := strings.ToLower(doc)
	h2 := strings.Count(doc, "## ") - strings.Count(doc, "### ")
	return docStats{
		raw:        doc,
		lower:      lower,
		h2:         h2,
		headers:    h2 + strings.Count(doc, "### "),
		codeBlocks: strings.Count(doc, "```"),
		words:      len(strings.Fields(doc)),
	}
}

// reviewScore 满分 100 的加权打分，归一到 [0,1]
func (s docStats) reviewScore() float64 {
	score := 0
	score += min(s.headers*5, 25)
	score += min(s.codeBlocks*5, 20)
	switch {
	case s.words >= 1000:
		score += 20
	case s.words >= 500:
		score += 15
	case s.words >= 200:
		score += 10
	}

	terms := 0
	for _, t := range technicalTerms {
		if strings.Contains(s.lower, t) {
			terms++
		}
	}
	score += min(terms*2, 15)

	examples := strings.Count(s.lower, "example") + strings.Count(s.lower, "usage")
	score += min(examples*3, 10)

	sections := 0
	for _, sec := range expectedSection {
		if strings.Contains(s.lower, sec) {
			sections++
		}
	}
	score += min(sections*2, 10)

	return math.Min(float64(score)/100, 1)
}

func (s docStats) completeness() float64 {
	v := math.Min(float64(s.words)/1000, 1) * 0.8
	if s.headers >= 5 {
		v += 0.2
	}
	return round2(v)
}

func (s docStats) accuracy() float64 {
	v := math.Min(float64(s.codeBlocks)/5, 1) * 0.6
	if strings.Contains(s.raw, "def ") || strings.Contains(s.raw, "func ") || strings.Contains(s.raw, "function ") {
		v += 0.4
	}
	return round2(v)
}

func (s docStats) readability() float64 {
	v := 0.0
	if s.headers >= 3 {
		v += 0.4
	}
	if s.words >= 200 {
		v += 0.3
	}
	if strings.Contains(s.lower, "example") {
		v += 0.3
	}
	return round2(v)
}

func (s docStats) consistency() float64 {
	v := 0.0
	if s.headers >= 2 {
		v += 0.5
	}
	if s.codeBlocks >= 2 {
		v += 0.5
	}
	return v
}

func (s docStats) suggestions(q *workflow.Quality) []string {
	var out []string
	if q.Completeness < 0.8 {
		out = append(out,
			"Add more comprehensive content - aim for at least 1000 words",
			"Include more detailed sections such as installation, usage, and API reference")
	}
	if q.Accuracy < 0.7 {
		out = append(out,
			"Add more code examples and function definitions",
			"Include actual code snippets from your repository")
	}
	if q.Clarity < 0.6 {
		out = append(out,
			"Improve structure with more clear headings and subheadings",
			"Add practical examples to illustrate concepts")
	}
	if s.consistency() < 0.7 {
		out = append(out,
			"Maintain consistent formatting throughout the documentation",
			"Ensure all code blocks have proper language specification")
	}
	if strings.Contains(s.raw, "def ") && !strings.Contains(s.raw, "```python") {
		out = append(out, "Specify Python language in code blocks for better syntax highlighting")
	}
	if s.h2 < 3 {
		out = append(out, "Add more section headers to organize content better")
	}
	if !strings.Contains(s.lower, "troubleshooting") {
		out = append(out, "Add a troubleshooting section to help users solve common issues")
	}
	return head(out, maxSuggestions)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
