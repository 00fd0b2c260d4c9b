package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/api"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 📝 工作流 Handler
// =============================================================================

// WorkflowService 工作流管理能力，*workflow.Manager 实现
type WorkflowService interface {
	Create(ctx context.Context, req workflow.Request) (*workflow.Workflow, error)
	Get(ctx context.Context, id string) (*workflow.Workflow, error)
	Stop(ctx context.Context, id string) (*workflow.Workflow, error)
	List(ctx context.Context) ([]*workflow.Workflow, error)
	SubmitFeedback(ctx context.Context, fb workflow.Feedback) (*workflow.FeedbackReceipt, error)
	AIPowered() bool
}

// Renderer 渲染下载内容，*workflow.ResultAssembler 实现
type Renderer interface {
	Render(wf *workflow.Workflow, format string) (string, error)
}

// EstimatedCompletion 受理响应中的预计完成时间
const EstimatedCompletion = "2-5 minutes"

// WorkflowHandler 处理生成、状态、停止、反馈、列表与下载
type WorkflowHandler struct {
	service  WorkflowService
	renderer Renderer
	logger   *zap.Logger
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(service WorkflowService, renderer Renderer, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		service:  service,
		renderer: renderer,
		logger:   logger.With(zap.String("component", "workflow_handler")),
	}
}

// HandleGenerate 处理 POST /generate
// @Summary 发起文档生成
// @Tags 工作流
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Success 202 {object} Response{data=api.GenerateResponse}
// @Failure 400 {object} Response
// @Router /generate [post]
func (h *WorkflowHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, GenerateSchema, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	wf, err := h.service.Create(r.Context(), req.ToWorkflowRequest())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	mode, msg := "Demo Mode", "Documentation generation initiated in demo mode (configure an LLM API key for AI generation)"
	if wf.AIPowered {
		mode, msg = "AI-Powered", "Documentation generation initiated successfully"
	}
	WriteSuccess(w, r, http.StatusAccepted, api.GenerateResponse{
		WorkflowID:          wf.ID,
		Status:              wf.Status,
		AIPowered:           wf.AIPowered,
		Mode:                mode,
		EstimatedCompletion: EstimatedCompletion,
		Message:             msg,
	})
}

// HandleStatus 处理 GET /status/{id}
// @Summary 查询工作流状态
// @Tags 工作流
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} Response{data=api.StatusResponse}
// @Failure 404 {object} Response
// @Router /status/{id} [get]
func (h *WorkflowHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	wf, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, http.StatusOK, api.NewStatusResponse(wf))
}

// HandleStop 处理 POST /stop-workflow，对终态工作流幂等
// @Summary 停止工作流
// @Tags 工作流
// @Accept json
// @Produce json
// @Param request body api.StopRequest true "停止请求"
// @Success 200 {object} Response{data=api.StopResponse}
// @Failure 404 {object} Response
// @Router /stop-workflow [post]
func (h *WorkflowHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req api.StopRequest
	if err := DecodeJSONBody(w, r, StopSchema, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	wf, err := h.service.Stop(r.Context(), req.WorkflowID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	msg := "Workflow stop requested"
	if wf.Status.IsTerminal() {
		msg = fmt.Sprintf("Workflow already %s", wf.Status)
	}
	WriteSuccess(w, r, http.StatusOK, api.StopResponse{
		WorkflowID: wf.ID,
		Status:     wf.Status,
		Message:    msg,
	})
}

// HandleFeedback 处理 POST /feedback
// @Summary 提交反馈
// @Tags 工作流
// @Accept json
// @Produce json
// @Param request body api.FeedbackRequest true "反馈"
// @Success 200 {object} Response{data=workflow.FeedbackReceipt}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /feedback [post]
func (h *WorkflowHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req api.FeedbackRequest
	if err := DecodeJSONBody(w, r, FeedbackSchema, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	receipt, err := h.service.SubmitFeedback(r.Context(), req.ToFeedback())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, http.StatusOK, receipt)
}

// HandleList 处理 GET /workflows
// @Summary 列出工作流
// @Tags 工作流
// @Produce json
// @Success 200 {object} Response{data=api.WorkflowList}
// @Router /workflows [get]
func (h *WorkflowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	wfs, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, http.StatusOK, api.NewWorkflowList(wfs))
}

// =============================================================================
// 📥 下载
// =============================================================================

type downloadFormat struct {
	contentType string
	ext         string
}

var downloadFormats = map[string]downloadFormat{
	workflow.FormatMarkdown: {contentType: "text/markdown; charset=utf-8", ext: "md"},
	workflow.FormatHTML:     {contentType: "text/html; charset=utf-8", ext: "html"},
	workflow.FormatJSON:     {contentType: "application/json; charset=utf-8", ext: "json"},
}

// HandleDownload 处理 GET /download/{id}?format=markdown|html|json
// @Summary 下载文档
// @Tags 工作流
// @Produce octet-stream
// @Param id path string true "工作流 ID"
// @Param format query string false "markdown | html | json"
// @Success 200 {file} file
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /download/{id} [get]
func (h *WorkflowHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = workflow.FormatMarkdown
	}
	df, ok := downloadFormats[format]
	if !ok {
		WriteError(w, r, types.NewValidationError("format",
			fmt.Sprintf("unsupported format %q; use one of %s", format, strings.Join(workflow.KnownFormats, ", "))), h.logger)
		return
	}

	wf, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if wf.Status != workflow.StatusCompleted {
		WriteError(w, r, types.NewInvalidStateError(
			fmt.Sprintf("workflow %s is %s; download requires a completed workflow", wf.ID, wf.Status),
			http.StatusBadRequest), h.logger)
		return
	}

	content, err := h.renderer.Render(wf, format)
	if err != nil {
		WriteError(w, r, types.NewInternalError("failed to render documentation").WithCause(err), h.logger)
		return
	}

	w.Header().Set("Content-Type", df.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, downloadFilename(wf, df.ext)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func downloadFilename(wf *workflow.Workflow, ext string) string {
	name := wf.Request.ProjectID
	if wf.Result != nil && wf.Result.RepositorySummary.ProjectName != "" {
		name = wf.Result.RepositorySummary.ProjectName
	}
	if name == "" {
		name = "documentation"
	}
	return name + "_documentation." + ext
}

// =============================================================================
// 🌍 翻译语言
// =============================================================================

// HandleLanguages 处理 GET /translation/languages
// @Summary 支持的翻译语言
// @Tags 工作流
// @Produce json
// @Success 200 {object} Response{data=api.LanguagesResponse}
// @Router /translation/languages [get]
func HandleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := slices.Clone(workflow.SupportedLanguages)
	WriteSuccess(w, r, http.StatusOK, api.LanguagesResponse{TotalCount: len(langs), Languages: langs})
}
