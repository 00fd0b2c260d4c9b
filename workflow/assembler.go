package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/docflow/render"
)

// Weights 总分权重
type Weights struct {
	Completeness float64
	Accuracy     float64
	Clarity      float64
}

// DefaultWeights returns 0.4/0.35/0.25.
func DefaultWeights() Weights {
	return Weights{Completeness: 0.40, Accuracy: 0.35, Clarity: 0.25}
}

func (w Weights) normalized() Weights {
	if w.Completeness < 0 || w.Accuracy < 0 || w.Clarity < 0 {
		return DefaultWeights()
	}
	sum := w.Completeness + w.Accuracy + w.Clarity
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Completeness: w.Completeness / sum,
		Accuracy:     w.Accuracy / sum,
		Clarity:      w.Clarity / sum,
	}
}

// ExportDocument is the body of the json output format.
type ExportDocument struct {
	WorkflowID        string            `json:"workflow_id"`
	ProjectName       string            `json:"project_name"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Documentation     string            `json:"documentation"`
	RepositorySummary RepositorySummary `json:"repository_summary"`
	Diagrams          []Diagram         `json:"diagrams,omitempty"`
	Quality           *Quality          `json:"quality,omitempty"`
	AIPowered         bool              `json:"ai_powered"`
	Metadata          ExportMetadata    `json:"metadata"`
}

// ExportMetadata 导出元数据
type ExportMetadata struct {
	TotalProcessingTime float64  `json:"total_processing_time"`
	WorkflowStatus      Status   `json:"workflow_status"`
	AgentsUsed          []string `json:"agents_used"`
}

// ResultAssembler merges stage outputs into a Result.
type ResultAssembler struct {
	weights Weights
	now     func() time.Time
}

// NewResultAssembler creates an assembler. Invalid weights fall back to the defaults.
func NewResultAssembler(w Weights) *ResultAssembler {
	return &ResultAssembler{weights: w.normalized(), now: time.Now}
}

// Weights returns the normalized weights in use.
func (a *ResultAssembler) Weights() Weights { return a.weights }

// OverallScore computes the weighted score clamped to [0,1].
func (a *ResultAssembler) OverallScore(q Quality) float64 {
	s := a.weights.Completeness*clamp01(q.Completeness) +
		a.weights.Accuracy*clamp01(q.Accuracy) +
		a.weights.Clarity*clamp01(q.Clarity)
	return clamp01(s)
}

// Partial builds a result from whatever the context holds. Used for failed runs.
func (a *ResultAssembler) Partial(wctx *Context) *Result {
	r := &Result{
		Analysis:          wctx.Analysis.clone(),
		Documentation:     wctx.Documentation,
		Diagrams:          append([]Diagram(nil), wctx.Diagrams...),
		RepositorySummary: summarize(wctx),
		Metadata:          cloneMetadata(wctx.Metadata),
	}
	if len(wctx.Translations) > 0 {
		r.Translations = make(map[string]Translation, len(wctx.Translations))
		for k, v := range wctx.Translations {
			r.Translations[k] = v
		}
	}
	if wctx.Quality != nil {
		q := a.finalizeQuality(wctx)
		r.Quality = &q
	}
	return r
}

// Assemble builds the final result including one rendered entry per
// requested output format.
func (a *ResultAssembler) Assemble(wf *Workflow, wctx *Context) (*Result, error) {
	r := a.Partial(wctx)
	if r.Quality == nil {
		q := a.finalizeQuality(wctx)
		r.Quality = &q
	}

	r.Formats = make(map[string]string, len(wctx.Request.OutputFormats))
	for _, f := range wctx.Request.OutputFormats {
		if _, done := r.Formats[f]; done {
			continue
		}
		out, err := a.renderFormat(f, wf, r)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f, err)
		}
		r.Formats[f] = out
	}
	return r, nil
}

// Render returns the download content of a completed workflow. Formats that
// were not requested at creation are rendered on demand.
func (a *ResultAssembler) Render(wf *Workflow, format string) (string, error) {
	if wf == nil || wf.Result == nil {
		return "", errors.New("workflow has no result")
	}
	if out, ok := wf.Result.Formats[format]; ok {
		return out, nil
	}
	return a.renderFormat(format, wf, wf.Result)
}

func (a *ResultAssembler) renderFormat(format string, wf *Workflow, r *Result) (string, error) {
	switch format {
	case FormatMarkdown:
		return r.Documentation, nil
	case FormatHTML:
		return render.HTMLPage(r.RepositorySummary.ProjectName+" Documentation", r.Documentation)
	case FormatJSON:
		return render.JSON(a.Export(wf, r))
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// Export builds the json download document.
func (a *ResultAssembler) Export(wf *Workflow, r *Result) ExportDocument {
	now := a.now()
	agents := PlanStages(wf.Request)
	return ExportDocument{
		WorkflowID:        wf.ID,
		ProjectName:       r.RepositorySummary.ProjectName,
		GeneratedAt:       now.UTC(),
		Documentation:     r.Documentation,
		RepositorySummary: r.RepositorySummary,
		Diagrams:          r.Diagrams,
		Quality:           r.Quality,
		AIPowered:         wf.AIPowered,
		Metadata: ExportMetadata{
			TotalProcessingTime: now.Sub(wf.CreatedAt).Seconds(),
			WorkflowStatus:      StatusCompleted,
			AgentsUsed:          agents,
		},
	}
}

func (a *ResultAssembler) finalizeQuality(wctx *Context) Quality {
	var q Quality
	if wctx.Quality != nil {
		q = *wctx.Quality.clone()
	}
	q.Completeness = clamp01(q.Completeness)
	q.Accuracy = clamp01(q.Accuracy)
	q.Clarity = clamp01(q.Clarity)
	q.OverallScore = a.OverallScore(q)

	merged := make([]string, 0, len(q.Suggestions)+len(wctx.Suggestions))
	merged = append(merged, q.Suggestions...)
	merged = append(merged, wctx.Suggestions...)
	q.Suggestions = DedupeSuggestions(merged)
	return q
}

func summarize(wctx *Context) RepositorySummary {
	s := RepositorySummary{
		ProjectName:   wctx.Request.ProjectID,
		RepositoryURL: wctx.Request.RepositoryURL,
	}
	if a := wctx.Analysis; a != nil {
		s.FileCount = a.FileCount
		s.LinesOfCode = a.LinesOfCode
		s.FunctionCount = len(a.Functions)
		s.ClassCount = len(a.Classes)
		s.PrimaryLanguage = a.PrimaryLanguage
	}
	return s
}

// DedupeSuggestions drops blanks and duplicates, comparing case- and
// whitespace-insensitively. The first occurrence wins and order is kept.
func DedupeSuggestions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		key := strings.ToLower(strings.Join(strings.Fields(s), " "))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
