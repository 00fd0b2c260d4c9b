package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
)

// FeedbackSink records normalized feedback for analytics.
type FeedbackSink interface {
	RecordFeedback(ctx context.Context, rec FeedbackRecord) error
}

// FeedbackObserver is notified of every accepted rating.
type FeedbackObserver interface {
	RecordFeedbackRating(rating int)
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithFeedbackCollector sets the adapter that normalizes feedback.
func WithFeedbackCollector(a AgentAdapter) ManagerOption {
	return func(m *Manager) { m.collector = a }
}

// WithFeedbackSink sets where feedback records are written.
func WithFeedbackSink(s FeedbackSink) ManagerOption {
	return func(m *Manager) { m.feedback = s }
}

// WithFeedbackObserver sets the rating observer (metrics).
func WithFeedbackObserver(o FeedbackObserver) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithAIPowered marks workflows as produced by the live content provider.
func WithAIPowered(live bool) ManagerOption {
	return func(m *Manager) { m.aiPowered = live }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l.With(zap.String("component", "workflow_manager")) }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

// Manager is the entry point for creating and observing workflows.
type Manager struct {
	store     StatusStore
	orch      *Orchestrator
	collector AgentAdapter
	feedback  FeedbackSink
	observer  FeedbackObserver
	aiPowered bool
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewManager creates a Manager.
func NewManager(store StatusStore, orch *Orchestrator, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		orch:   orch,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AIPowered reports whether the live content provider is in use.
func (m *Manager) AIPowered() bool { return m.aiPowered }

// Create validates req, registers an initiated workflow and starts it in the
// background. It returns the initiated snapshot.
func (m *Manager) Create(ctx context.Context, req Request) (*Workflow, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	wf := NewWorkflow(m.newID(), req, m.now(), m.aiPowered)
	if err := m.store.Put(ctx, wf); err != nil {
		return nil, types.NewInternalError("failed to register workflow").WithCause(err)
	}

	if err := m.orch.Submit(wf); err != nil {
		now := m.now()
		wf.Status = StatusFailed
		wf.Message = "Workflow could not be scheduled: service is shutting down"
		wf.CompletedAt = &now
		_ = m.store.Put(context.WithoutCancel(ctx), wf)
		return nil, types.NewError(types.ErrServiceUnavailable, "workflow engine is shutting down").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable)
	}

	m.logger.Info("workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("project_id", req.ProjectID),
		zap.Bool("ai_powered", m.aiPowered))
	return wf.Clone(), nil
}

// Get returns a snapshot of the workflow.
func (m *Manager) Get(ctx context.Context, id string) (*Workflow, error) {
	wf, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkflowNotFound) {
			return nil, types.NewNotFoundError(fmt.Sprintf("workflow %s not found", id))
		}
		return nil, types.NewInternalError("failed to read workflow status").WithCause(err)
	}
	return wf, nil
}

// Stop requests cancellation. Stopping a terminal workflow is a no-op.
func (m *Manager) Stop(ctx context.Context, id string) (*Workflow, error) {
	wf, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.Status.IsTerminal() {
		return wf, nil
	}
	if m.orch.Cancel(id) {
		m.logger.Info("workflow stop requested", zap.String("workflow_id", id))
		return wf, nil
	}

	// not running here: it just finished, another replica owns it, or it was
	// left behind by a previous process sharing the store
	wf, err = m.Get(ctx, id)
	if err != nil || wf.Status.IsTerminal() {
		return wf, err
	}
	now := m.now()
	lastUpdate := wf.UpdatedAt
	if cr, ok := m.store.(CancelRequests); ok {
		if err := cr.RequestCancel(ctx, id); err != nil {
			return nil, types.NewInternalError("failed to record cancellation").WithCause(err)
		}
		if now.Sub(lastUpdate) <= m.orch.cfg.WorkflowTimeout {
			m.logger.Info("workflow stop forwarded to owning instance", zap.String("workflow_id", id))
			return wf, nil
		}
	}
	for name, st := range wf.Agents {
		if st.Status == AgentActive {
			st.Status = AgentIdle
			wf.Agents[name] = st
		}
	}
	wf.Status = StatusCancelled
	wf.CurrentAgent = ""
	wf.Message = messageCancelled
	wf.CompletedAt = &now
	wf.UpdatedAt = now
	if err := m.store.Put(ctx, wf); err != nil {
		return nil, types.NewInternalError("failed to record cancellation").WithCause(err)
	}
	m.logger.Warn("cancelled orphaned workflow",
		zap.String("workflow_id", id),
		zap.Time("last_update", lastUpdate))
	return wf, nil
}

// List returns all workflows ordered by creation time.
func (m *Manager) List(ctx context.Context) ([]*Workflow, error) {
	wfs, err := m.store.List(ctx)
	if err != nil {
		return nil, types.NewInternalError("failed to list workflows").WithCause(err)
	}
	SortByCreated(wfs)
	return wfs, nil
}

// SubmitFeedback records feedback for a completed workflow.
func (m *Manager) SubmitFeedback(ctx context.Context, fb Feedback) (*FeedbackReceipt, error) {
	if uid, ok := types.UserID(ctx); ok && fb.UserID == "" {
		fb.UserID = uid
	}
	if err := ValidateFeedback(fb); err != nil {
		return nil, err
	}
	wf, err := m.Get(ctx, fb.WorkflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != StatusCompleted {
		return nil, types.NewInvalidStateError(
			fmt.Sprintf("workflow %s is %s; feedback requires a completed workflow", wf.ID, wf.Status),
			http.StatusNotFound)
	}

	wctx := NewContext(wf.ID, wf.Request)
	if wf.Result != nil {
		wctx.Documentation = wf.Result.Documentation
		wctx.Quality = wf.Result.Quality.clone()
		wctx.Analysis = wf.Result.Analysis.clone()
	}
	wctx.Feedback = &fb

	receipt, err := m.collect(ctx, wctx)
	if err != nil {
		return nil, types.NewAgentExecutionError(StageFeedbackCollector, err)
	}

	if m.observer != nil {
		m.observer.RecordFeedbackRating(receipt.Rating)
	}
	if m.feedback != nil {
		if err := m.feedback.RecordFeedback(ctx, receipt.FeedbackRecord); err != nil {
			m.logger.Warn("feedback sink write failed",
				zap.String("workflow_id", wf.ID),
				zap.Error(err))
		} else {
			receipt.Stored = true
		}
	}
	return receipt, nil
}

func (m *Manager) collect(ctx context.Context, wctx *Context) (*FeedbackReceipt, error) {
	if m.collector != nil {
		if err := m.collector.Run(ctx, wctx, func(int, string) {}); err != nil {
			return nil, err
		}
	}
	if wctx.FeedbackReceipt != nil {
		return wctx.FeedbackReceipt, nil
	}
	fb := wctx.Feedback
	return &FeedbackReceipt{
		FeedbackRecord: FeedbackRecord{
			ID:         uuid.New().String(),
			WorkflowID: fb.WorkflowID,
			UserID:     fb.UserID,
			ProjectID:  wctx.Request.ProjectID,
			Rating:     fb.Rating,
			Scores: map[string]int{
				"usefulness":   fb.UsefulnessScore,
				"accuracy":     fb.AccuracyScore,
				"completeness": fb.CompletenessScore,
			},
			Comments:    fb.Comments,
			SubmittedAt: m.now().UTC(),
		},
		AverageRating: float64(fb.Rating),
		TotalFeedback: 1,
	}, nil
}

// Shutdown cancels running workflows and waits for them.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.orch.Shutdown(ctx)
}
