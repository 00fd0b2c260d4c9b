package workflow

import (
	"strings"

	"dario.cat/mergo"
)

// Context is the data threaded through the pipeline. Each stage writes only
// its own output field; the orchestrator hands stages a private copy and
// adopts that field afterwards.
type Context struct {
	WorkflowID    string
	Request       Request
	Analysis      *Analysis
	Documentation string
	Diagrams      []Diagram
	Translations  map[string]Translation
	Quality       *Quality
	Suggestions   []string
	Metadata      map[string]any

	// feedback path only
	Feedback        *Feedback
	FeedbackReceipt *FeedbackReceipt
}

// NewContext creates an empty context for a workflow.
func NewContext(id string, req Request) *Context {
	return &Context{
		WorkflowID: id,
		Request:    req.clone(),
		Metadata:   make(map[string]any),
	}
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	cp := *c
	cp.Request = c.Request.clone()
	cp.Analysis = c.Analysis.clone()
	cp.Diagrams = append([]Diagram(nil), c.Diagrams...)
	if c.Translations != nil {
		cp.Translations = make(map[string]Translation, len(c.Translations))
		for k, v := range c.Translations {
			cp.Translations[k] = v
		}
	}
	cp.Quality = c.Quality.clone()
	cp.Suggestions = append([]string(nil), c.Suggestions...)
	cp.Metadata = cloneMetadata(c.Metadata)
	if c.Feedback != nil {
		f := *c.Feedback
		cp.Feedback = &f
	}
	if c.FeedbackReceipt != nil {
		r := *c.FeedbackReceipt
		cp.FeedbackReceipt = &r
	}
	return &cp
}

// adopt copies the field owned by stage from the stage's scratch copy.
// Suggestions and metadata are appended/merged by every stage.
func (c *Context) adopt(stage string, from *Context) error {
	switch stage {
	case StageCodeAnalyzer:
		c.Analysis = from.Analysis
	case StageDocWriter:
		c.Documentation = from.Documentation
	case StageDiagramGenerator:
		c.Diagrams = from.Diagrams
	case StageTranslation:
		c.Translations = from.Translations
	case StageQualityReviewer:
		c.Quality = from.Quality
	case StageFeedbackCollector:
		c.FeedbackReceipt = from.FeedbackReceipt
	}
	if len(from.Suggestions) > len(c.Suggestions) {
		c.AddSuggestions(from.Suggestions[len(c.Suggestions):]...)
	}
	return c.MergeMetadata(from.Metadata)
}

// AddSuggestions appends suggestions, skipping blanks.
func (c *Context) AddSuggestions(s ...string) {
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			c.Suggestions = append(c.Suggestions, v)
		}
	}
}

// MergeMetadata merges src into the context metadata, src wins on conflict.
func (c *Context) MergeMetadata(src map[string]any) error {
	if len(src) == 0 {
		return nil
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, len(src))
	}
	return mergo.Merge(&c.Metadata, src, mergo.WithOverride)
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMetadata(nested)
			continue
		}
		out[k] = v
	}
	return out
}
