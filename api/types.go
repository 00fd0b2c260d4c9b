package api

import (
	"time"

	"github.com/BaSui01/docflow/stages"
	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 📝 文档生成
// =============================================================================

// GenerateRequest 文档生成请求。
// @Description 文档生成请求结构
type GenerateRequest struct {
	// 仓库地址，如 https://github.com/owner/repo
	RepositoryURL string `json:"repository_url" example:"https://github.com/acme/widgets"`
	// 项目 ID，仅字母、数字、- 和 _
	ProjectID string `json:"project_id" example:"widgets"`
	// 输出格式，默认 markdown
	OutputFormats []string `json:"output_formats,omitempty" example:"markdown,html"`
	// 是否生成图表，默认 true
	IncludeDiagrams *bool `json:"include_diagrams,omitempty"`
	// 目标读者，默认 developers
	TargetAudience string `json:"target_audience,omitempty" example:"developers"`
	// 翻译语言（键或代码）
	TranslationLanguages []string `json:"translation_languages,omitempty" example:"es,ja"`
	// 私有仓库访问令牌，不会出现在状态快照中
	GitHubToken string `json:"github_token,omitempty"`
	// GitHub 用户名
	GitHubUsername string `json:"github_username,omitempty"`
}

// ToWorkflowRequest 填充默认值并转换为领域请求
func (r GenerateRequest) ToWorkflowRequest() workflow.Request {
	req := workflow.Request{
		RepositoryURL:        r.RepositoryURL,
		ProjectID:            r.ProjectID,
		OutputFormats:        r.OutputFormats,
		IncludeDiagrams:      true,
		TargetAudience:       r.TargetAudience,
		TranslationLanguages: r.TranslationLanguages,
		GitHubUsername:       r.GitHubUsername,
		GitHubToken:          r.GitHubToken,
	}
	if len(req.OutputFormats) == 0 {
		req.OutputFormats = []string{workflow.FormatMarkdown}
	}
	if r.IncludeDiagrams != nil {
		req.IncludeDiagrams = *r.IncludeDiagrams
	}
	if req.TargetAudience == "" {
		req.TargetAudience = workflow.AudienceDevelopers
	}
	return req
}

// GenerateResponse 文档生成受理结果
type GenerateResponse struct {
	WorkflowID          string          `json:"workflow_id"`
	Status              workflow.Status `json:"status"`
	AIPowered           bool            `json:"ai_powered"`
	Mode                string          `json:"mode" example:"Demo Mode"`
	EstimatedCompletion string          `json:"estimated_completion" example:"2-5 minutes"`
	Message             string          `json:"message"`
}

// =============================================================================
// 📊 状态查询
// =============================================================================

// StatusResponse 工作流状态快照
type StatusResponse struct {
	WorkflowID        string                         `json:"workflow_id"`
	Status            workflow.Status                `json:"status"`
	Progress          int                            `json:"progress"`
	Message           string                         `json:"message"`
	CurrentAgent      string                         `json:"current_agent"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
	CompletedAt       *time.Time                     `json:"completed_at"`
	Agents            map[string]workflow.AgentState `json:"agents"`
	Result            *workflow.Result               `json:"result"`
	AIPowered         bool                           `json:"ai_powered"`
	TransitionHistory []workflow.Transition          `json:"transition_history"`
}

// StatusHistoryLimit 状态响应返回的最近状态变更条数
const StatusHistoryLimit = 10

// NewStatusResponse 由快照构建状态响应
func NewStatusResponse(wf *workflow.Workflow) StatusResponse {
	history := wf.RecentHistory(StatusHistoryLimit)
	if history == nil {
		history = []workflow.Transition{}
	}
	return StatusResponse{
		WorkflowID:        wf.ID,
		Status:            wf.Status,
		Progress:          wf.Progress,
		Message:           wf.Message,
		CurrentAgent:      wf.CurrentAgent,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
		CompletedAt:       wf.CompletedAt,
		Agents:            wf.Agents,
		Result:            wf.Result,
		AIPowered:         wf.AIPowered,
		TransitionHistory: history,
	}
}

// StopRequest 停止工作流请求
type StopRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// StopResponse 停止确认
type StopResponse struct {
	WorkflowID string          `json:"workflow_id"`
	Status     workflow.Status `json:"status"`
	Message    string          `json:"message"`
}

// WorkflowSummary /workflows 列表项
type WorkflowSummary struct {
	WorkflowID   string          `json:"workflow_id"`
	ProjectID    string          `json:"project_id"`
	Status       workflow.Status `json:"status"`
	Progress     int             `json:"progress"`
	CurrentAgent string          `json:"current_agent,omitempty"`
	AIPowered    bool            `json:"ai_powered"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// WorkflowList 工作流列表
type WorkflowList struct {
	TotalWorkflows int               `json:"total_workflows"`
	Workflows      []WorkflowSummary `json:"workflows"`
}

// NewWorkflowList 由快照列表构建
func NewWorkflowList(wfs []*workflow.Workflow) WorkflowList {
	out := WorkflowList{TotalWorkflows: len(wfs), Workflows: make([]WorkflowSummary, 0, len(wfs))}
	for _, wf := range wfs {
		out.Workflows = append(out.Workflows, WorkflowSummary{
			WorkflowID:   wf.ID,
			ProjectID:    wf.Request.ProjectID,
			Status:       wf.Status,
			Progress:     wf.Progress,
			CurrentAgent: wf.CurrentAgent,
			AIPowered:    wf.AIPowered,
			CreatedAt:    wf.CreatedAt,
			CompletedAt:  wf.CompletedAt,
		})
	}
	return out
}

// =============================================================================
// 💬 反馈
// =============================================================================

// FeedbackRequest 用户反馈
type FeedbackRequest struct {
	WorkflowID        string `json:"workflow_id"`
	UserID            string `json:"user_id,omitempty"`
	Rating            int    `json:"rating" example:"5"`
	UsefulnessScore   int    `json:"usefulness_score" example:"4"`
	AccuracyScore     int    `json:"accuracy_score" example:"4"`
	CompletenessScore int    `json:"completeness_score" example:"5"`
	Comments          string `json:"comments,omitempty"`
}

// ToFeedback 转换为领域反馈
func (r FeedbackRequest) ToFeedback() workflow.Feedback {
	return workflow.Feedback{
		WorkflowID:        r.WorkflowID,
		UserID:            r.UserID,
		Rating:            r.Rating,
		UsefulnessScore:   r.UsefulnessScore,
		AccuracyScore:     r.AccuracyScore,
		CompletenessScore: r.CompletenessScore,
		Comments:          r.Comments,
	}
}

// =============================================================================
// 🤖 阶段与语言
// =============================================================================

// AgentsStatusResponse /agents/status 响应
type AgentsStatusResponse struct {
	TotalAgents int                `json:"total_agents"`
	Mode        string             `json:"mode"`
	Provider    string             `json:"provider"`
	Agents      []stages.AgentInfo `json:"agents"`
}

// LanguagesResponse /translation/languages 响应
type LanguagesResponse struct {
	TotalCount int                 `json:"total_count"`
	Languages  []workflow.Language `json:"languages"`
}

// =============================================================================
// 🔐 GitHub OAuth
// =============================================================================

// GitHubConfigResponse 前端 OAuth 配置
type GitHubConfigResponse struct {
	OAuthConfigured bool     `json:"oauth_configured"`
	ClientID        string   `json:"client_id,omitempty"`
	RedirectURI     string   `json:"redirect_uri,omitempty"`
	Scopes          []string `json:"scopes"`
	AuthorizeURL    string   `json:"authorize_url,omitempty"`
}

// GitHubTokenRequest 授权码换令牌请求
type GitHubTokenRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// GitHubTokenResponse 换取到的访问令牌
type GitHubTokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	Scope       string     `json:"scope,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty"`
}
