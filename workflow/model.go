package workflow

import (
	"time"
)

// Status 工作流状态
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// AgentStatus 单个阶段的状态
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentActive    AgentStatus = "active"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

// Stage names. They double as keys of Workflow.Agents.
const (
	StageCodeAnalyzer      = "code_analyzer"
	StageDocWriter         = "doc_writer"
	StageDiagramGenerator  = "diagram_generator"
	StageTranslation       = "translation_agent"
	StageQualityReviewer   = "quality_reviewer"
	StageFeedbackCollector = "feedback_collector"
)

// PipelineStages is the canonical generation order.
var PipelineStages = []string{
	StageCodeAnalyzer,
	StageDocWriter,
	StageDiagramGenerator,
	StageTranslation,
	StageQualityReviewer,
}

var stageDisplayNames = map[string]string{
	StageCodeAnalyzer:      "Code Analyzer",
	StageDocWriter:         "Doc Writer",
	StageDiagramGenerator:  "Diagram Generator",
	StageTranslation:       "Translation Agent",
	StageQualityReviewer:   "Quality Reviewer",
	StageFeedbackCollector: "Feedback Collector",
}

// StageDisplayName returns the human-readable name of a stage.
func StageDisplayName(stage string) string {
	if n, ok := stageDisplayNames[stage]; ok {
		return n
	}
	return stage
}

// PlanStages returns the stages a request will run, in order.
func PlanStages(req Request) []string {
	plan := make([]string, 0, len(PipelineStages))
	for _, s := range PipelineStages {
		switch s {
		case StageDiagramGenerator:
			if !req.IncludeDiagrams {
				continue
			}
		case StageTranslation:
			if len(req.TranslationLanguages) == 0 {
				continue
			}
		}
		plan = append(plan, s)
	}
	return plan
}

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

// KnownFormats lists every supported output format.
var KnownFormats = []string{FormatMarkdown, FormatHTML, FormatJSON}

// Target audiences
const (
	AudienceDevelopers       = "developers"
	AudienceBeginners        = "beginners"
	AudienceTechnicalWriters = "technical_writers"
	AudienceArchitects       = "architects"
	AudienceEndUsers         = "end_users"
)

// KnownAudiences lists every supported target audience.
var KnownAudiences = []string{
	AudienceDevelopers,
	AudienceBeginners,
	AudienceTechnicalWriters,
	AudienceArchitects,
	AudienceEndUsers,
}

// Request 文档生成请求
type Request struct {
	RepositoryURL        string   `json:"repository_url"`
	ProjectID            string   `json:"project_id"`
	OutputFormats        []string `json:"output_formats"`
	IncludeDiagrams      bool     `json:"include_diagrams"`
	TargetAudience       string   `json:"target_audience"`
	TranslationLanguages []string `json:"translation_languages"`
	GitHubUsername       string   `json:"github_username,omitempty"`
	// GitHubToken is used for private repositories and never serialized.
	GitHubToken string `json:"-"`
}

// clone returns a deep copy of the request.
func (r Request) clone() Request {
	r.OutputFormats = append([]string(nil), r.OutputFormats...)
	r.TranslationLanguages = append([]string(nil), r.TranslationLanguages...)
	return r
}

// AgentState 阶段执行状态
type AgentState struct {
	AgentID     string      `json:"agent_id"`
	AgentName   string      `json:"agent_name"`
	Status      AgentStatus `json:"status"`
	Progress    int         `json:"progress"`
	CurrentTask string      `json:"current_task,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Transition records one agent status change.
type Transition struct {
	Agent            string      `json:"agent"`
	Status           AgentStatus `json:"status"`
	Progress         int         `json:"progress"`
	CurrentTask      string      `json:"current_task,omitempty"`
	WorkflowProgress int         `json:"workflow_progress"`
	Timestamp        time.Time   `json:"timestamp"`
}

// Workflow 一次完整文档生成运行的快照
type Workflow struct {
	ID           string                `json:"workflow_id"`
	Status       Status                `json:"status"`
	Progress     int                   `json:"progress"`
	CurrentAgent string                `json:"current_agent"`
	Message      string                `json:"message"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	Agents       map[string]AgentState `json:"agents"`
	Result       *Result               `json:"result"`
	Request      Request               `json:"request"`
	AIPowered    bool                  `json:"ai_powered"`
	History      []Transition          `json:"transition_history,omitempty"`
}

// Clone returns a deep copy that shares no mutable state with w.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.Request = w.Request.clone()
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		c.CompletedAt = &t
	}
	if w.Agents != nil {
		c.Agents = make(map[string]AgentState, len(w.Agents))
		for k, v := range w.Agents {
			if v.StartedAt != nil {
				t := *v.StartedAt
				v.StartedAt = &t
			}
			if v.CompletedAt != nil {
				t := *v.CompletedAt
				v.CompletedAt = &t
			}
			c.Agents[k] = v
		}
	}
	c.History = append([]Transition(nil), w.History...)
	c.Result = w.Result.Clone()
	return &c
}

// ActiveAgents counts agents currently marked active.
func (w *Workflow) ActiveAgents() int {
	n := 0
	for _, a := range w.Agents {
		if a.Status == AgentActive {
			n++
		}
	}
	return n
}

// RecentHistory returns at most n of the latest transitions.
func (w *Workflow) RecentHistory(n int) []Transition {
	if n <= 0 || len(w.History) <= n {
		return w.History
	}
	return w.History[len(w.History)-n:]
}

// =============================================================================
// Stage outputs
// =============================================================================

// Function 解析出的函数
type Function struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Parameters []string `json:"parameters,omitempty"`
	Docstring  string   `json:"docstring,omitempty"`
	Line       int      `json:"line,omitempty"`
}

// Class 解析出的类型
type Class struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Methods     []string `json:"methods,omitempty"`
	Inheritance []string `json:"inheritance,omitempty"`
	Docstring   string   `json:"docstring,omitempty"`
	Line        int      `json:"line,omitempty"`
}

// Endpoint 解析出的 HTTP 路由
type Endpoint struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Function string `json:"function,omitempty"`
	File     string `json:"file,omitempty"`
}

// Analysis code_analyzer 的输出
type Analysis struct {
	ProjectID            string              `json:"project_id"`
	RepositoryURL        string              `json:"repository_url"`
	Structure            map[string][]string `json:"structure,omitempty"`
	Functions            []Function          `json:"functions,omitempty"`
	Classes              []Class             `json:"classes,omitempty"`
	Dependencies         []string            `json:"dependencies,omitempty"`
	APIEndpoints         []Endpoint          `json:"api_endpoints,omitempty"`
	FileCount            int                 `json:"file_count"`
	LinesOfCode          int                 `json:"lines_of_code"`
	LanguageDistribution map[string]float64  `json:"language_distribution,omitempty"`
	PrimaryLanguage      string              `json:"primary_language,omitempty"`
}

func (a *Analysis) clone() *Analysis {
	if a == nil {
		return nil
	}
	c := *a
	if a.Structure != nil {
		c.Structure = make(map[string][]string, len(a.Structure))
		for k, v := range a.Structure {
			c.Structure[k] = append([]string(nil), v...)
		}
	}
	c.Functions = make([]Function, len(a.Functions))
	for i, f := range a.Functions {
		f.Parameters = append([]string(nil), f.Parameters...)
		c.Functions[i] = f
	}
	c.Classes = make([]Class, len(a.Classes))
	for i, cl := range a.Classes {
		cl.Methods = append([]string(nil), cl.Methods...)
		cl.Inheritance = append([]string(nil), cl.Inheritance...)
		c.Classes[i] = cl
	}
	c.Dependencies = append([]string(nil), a.Dependencies...)
	c.APIEndpoints = append([]Endpoint(nil), a.APIEndpoints...)
	if a.LanguageDistribution != nil {
		c.LanguageDistribution = make(map[string]float64, len(a.LanguageDistribution))
		for k, v := range a.LanguageDistribution {
			c.LanguageDistribution[k] = v
		}
	}
	return &c
}

// Diagram diagram_generator 的单张图
type Diagram struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

// Translation translation_agent 的单语言输出
type Translation struct {
	Language   string `json:"language"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Content    string `json:"content"`
	Fallback   bool   `json:"fallback"`
}

// Quality 质量评估
type Quality struct {
	OverallScore float64            `json:"overall_score"`
	Completeness float64            `json:"completeness"`
	Accuracy     float64            `json:"accuracy"`
	Clarity      float64            `json:"clarity"`
	ReviewScore  float64            `json:"review_score"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Suggestions  []string           `json:"suggestions"`
}

func (q *Quality) clone() *Quality {
	if q == nil {
		return nil
	}
	c := *q
	if q.Metrics != nil {
		c.Metrics = make(map[string]float64, len(q.Metrics))
		for k, v := range q.Metrics {
			c.Metrics[k] = v
		}
	}
	c.Suggestions = append([]string(nil), q.Suggestions...)
	return &c
}

// RepositorySummary 仓库摘要
type RepositorySummary struct {
	ProjectName     string `json:"project_name"`
	RepositoryURL   string `json:"repository_url"`
	FileCount       int    `json:"file_count"`
	LinesOfCode     int    `json:"lines_of_code"`
	FunctionCount   int    `json:"function_count"`
	ClassCount      int    `json:"class_count"`
	PrimaryLanguage string `json:"primary_language,omitempty"`
}

// Result 工作流结果（完成时为完整结果，失败时为部分结果）
type Result struct {
	Analysis          *Analysis              `json:"analysis,omitempty"`
	Documentation     string                 `json:"documentation,omitempty"`
	Diagrams          []Diagram              `json:"diagrams,omitempty"`
	Translations      map[string]Translation `json:"translations,omitempty"`
	Quality           *Quality               `json:"quality,omitempty"`
	Formats           map[string]string      `json:"formats,omitempty"`
	RepositorySummary RepositorySummary      `json:"repository_summary"`
	Metadata          map[string]any         `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Analysis = r.Analysis.clone()
	c.Diagrams = append([]Diagram(nil), r.Diagrams...)
	if r.Translations != nil {
		c.Translations = make(map[string]Translation, len(r.Translations))
		for k, v := range r.Translations {
			c.Translations[k] = v
		}
	}
	c.Quality = r.Quality.clone()
	if r.Formats != nil {
		c.Formats = make(map[string]string, len(r.Formats))
		for k, v := range r.Formats {
			c.Formats[k] = v
		}
	}
	c.Metadata = cloneMetadata(r.Metadata)
	return &c
}

// =============================================================================
// Feedback
// =============================================================================

// Feedback 用户对已完成工作流的反馈
type Feedback struct {
	WorkflowID        string `json:"workflow_id"`
	UserID            string `json:"user_id,omitempty"`
	Rating            int    `json:"rating"`
	UsefulnessScore   int    `json:"usefulness_score"`
	AccuracyScore     int    `json:"accuracy_score"`
	CompletenessScore int    `json:"completeness_score"`
	Comments          string `json:"comments,omitempty"`
}

// FeedbackRecord 规范化后的反馈记录
type FeedbackRecord struct {
	ID           string         `json:"feedback_id"`
	WorkflowID   string         `json:"workflow_id"`
	UserID       string         `json:"user_id,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	Rating       int            `json:"rating"`
	Scores       map[string]int `json:"scores"`
	Comments     string         `json:"comments,omitempty"`
	QualityScore float64        `json:"quality_score"`
	SubmittedAt  time.Time      `json:"timestamp"`
}

// FeedbackReceipt is returned to the caller after feedback submission.
type FeedbackReceipt struct {
	FeedbackRecord
	Stored        bool    `json:"stored"`
	AverageRating float64 `json:"average_rating"`
	TotalFeedback int     `json:"total_feedback"`
}

// =============================================================================
// Supported translation languages
// =============================================================================

// Language 可翻译语言
type Language struct {
	Key        string `json:"key"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// SupportedLanguages in presentation order.
var SupportedLanguages = []Language{
	{Key: "spanish", Code: "es", Name: "Spanish", NativeName: "Español"},
	{Key: "french", Code: "fr", Name: "French", NativeName: "Français"},
	{Key: "german", Code: "de", Name: "German", NativeName: "Deutsch"},
	{Key: "japanese", Code: "ja", Name: "Japanese", NativeName: "日本語"},
	{Key: "portuguese", Code: "pt", Name: "Portuguese", NativeName: "Português"},
}

// LookupLanguage resolves a language by key ("spanish") or code ("es").
func LookupLanguage(keyOrCode string) (Language, bool) {
	for _, l := range SupportedLanguages {
		if l.Key == keyOrCode || l.Code == keyOrCode {
			return l, true
		}
	}
	return Language{}, false
}
