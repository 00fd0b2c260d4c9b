package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/docflow/types"
)

const (
	defaultStageTimeout    = 5 * time.Minute
	defaultWorkflowTimeout = 15 * time.Minute
	defaultMaxConcurrent   = 16
	defaultCancelPoll      = time.Second

	storeWriteTimeout     = 5 * time.Second
	artifactSaveTimeout   = 30 * time.Second
	tracerName            = "github.com/BaSui01/docflow/workflow"
	messageCompleted      = "Documentation generation completed successfully"
	messageCancelled      = "Workflow cancelled by user"
	messageStarted        = "Documentation generation started"
	messageAssemblyFailed = "result assembly failed"
)

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	StageTimeout    time.Duration
	WorkflowTimeout time.Duration
	MaxConcurrent   int
	HistorySize     int
	// CancelPollInterval is how often a shared store is checked for stops
	// recorded by other processes.
	CancelPollInterval time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.StageTimeout <= 0 {
		c.StageTimeout = defaultStageTimeout
	}
	if c.WorkflowTimeout <= 0 {
		c.WorkflowTimeout = defaultWorkflowTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.CancelPollInterval <= 0 {
		c.CancelPollInterval = defaultCancelPoll
	}
}

// MetricsRecorder receives workflow and stage outcomes.
type MetricsRecorder interface {
	RecordWorkflowStarted()
	RecordWorkflowFinished(status string, duration time.Duration)
	RecordStage(stage, status string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordWorkflowStarted()                       {}
func (noopMetrics) RecordWorkflowFinished(string, time.Duration) {}
func (noopMetrics) RecordStage(string, string, time.Duration)    {}

// ArtifactSink persists completed workflows. Failures never change workflow status.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, wf *Workflow) error
}

// OrchestratorOption 编排器选项
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l.With(zap.String("component", "orchestrator")) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithArtifactSink sets where completed workflows are persisted.
func WithArtifactSink(s ArtifactSink) OrchestratorOption {
	return func(o *Orchestrator) { o.artifacts = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// run is the orchestrator-owned state of one executing workflow.
type run struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool

	mu sync.Mutex // guards wf and store writes
	wf *Workflow
}

// Orchestrator drives workflows through the stage pipeline.
//
// One goroutine per workflow; stages run strictly in order. The orchestrator
// is the only writer of a workflow's snapshot while it runs.
type Orchestrator struct {
	cfg       OrchestratorConfig
	store     StatusStore
	adapters  Registry
	assembler *ResultAssembler
	logger    *zap.Logger
	metrics   MetricsRecorder
	artifacts ArtifactSink
	tracer    trace.Tracer
	now       func() time.Time

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu         sync.Mutex
	runs       map[string]*run
	baseCtx    context.Context
	baseCancel context.CancelFunc
	closed     bool
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store StatusStore, adapters Registry, assembler *ResultAssembler, cfg OrchestratorConfig, opts ...OrchestratorOption) *Orchestrator {
	cfg.applyDefaults()
	if assembler == nil {
		assembler = NewResultAssembler(DefaultWeights())
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		adapters:   adapters,
		assembler:  assembler,
		logger:     zap.NewNop(),
		metrics:    noopMetrics{},
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		runs:       make(map[string]*run),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ErrOrchestratorClosed is returned by Submit after Shutdown.
var ErrOrchestratorClosed = errors.New("orchestrator is shut down")

// Submit starts executing wf asynchronously. The snapshot must already be in
// the store with status initiated.
func (o *Orchestrator) Submit(wf *Workflow) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOrchestratorClosed
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	r := &run{id: wf.ID, ctx: ctx, cancel: cancel, wf: wf.Clone()}
	o.runs[wf.ID] = r
	o.wg.Add(1)
	go o.execute(wf.ID, r)
	return nil
}

// Cancel requests cooperative cancellation. It reports whether the workflow
// was still running.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	r, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return false
	}
	r.stopped.Store(true)
	r.cancel()
	return true
}

// Running reports whether id is owned by this orchestrator.
func (o *Orchestrator) Running(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.runs[id]
	return ok
}

// Shutdown cancels all running workflows and waits for them to record a
// terminal status or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	for _, r := range o.runs {
		r.stopped.Store(true)
	}
	o.mu.Unlock()
	o.baseCancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// 🔄 Execution
// =============================================================================

func (o *Orchestrator) execute(id string, r *run) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.runs, id)
		o.mu.Unlock()
		r.cancel()
	}()
	if cr, ok := o.store.(CancelRequests); ok {
		go o.watchCancel(r, cr)
	}

	// queued workflows stay initiated until a slot frees
	if err := o.sem.Acquire(r.ctx, 1); err != nil {
		o.finishCancelled(r, "")
		return
	}
	defer o.sem.Release(1)

	if o.stopRequested(r) {
		o.finishCancelled(r, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, o.cfg.WorkflowTimeout)
	defer cancel()

	req := r.wf.Request
	plan := PlanStages(req)
	ctx, span := o.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", id),
		attribute.String("workflow.project_id", req.ProjectID),
		attribute.Int("workflow.stages", len(plan)),
	))
	defer span.End()
	ctx = types.WithWorkflowID(ctx, id)

	start := o.now()
	o.metrics.RecordWorkflowStarted()
	log := o.logger.With(zap.String("workflow_id", id), zap.String("project_id", req.ProjectID))
	log.Info("workflow started", zap.Strings("stages", plan))

	o.update(r, func(wf *Workflow) {
		wf.Status = StatusProcessing
		wf.Message = messageStarted
	})

	wctx := NewContext(id, req)
	for i, stage := range plan {
		if o.stopRequested(r) {
			o.finishCancelled(r, "")
			o.finishMetrics(span, StatusCancelled, start, nil)
			return
		}
		if ctx.Err() != nil {
			err := o.classify(ctx, stage, ctx.Err())
			o.finishFailed(r, stage, err, wctx)
			o.finishMetrics(span, StatusFailed, start, err)
			return
		}

		o.update(r, func(wf *Workflow) {
			now := o.now()
			wf.CurrentAgent = stage
			wf.Progress = max(wf.Progress, stageProgress(i, len(plan)))
			wf.Message = fmt.Sprintf("Running %s", StageDisplayName(stage))
			st := wf.Agents[stage]
			st.Status = AgentActive
			st.Progress = 0
			st.CurrentTask = "Starting"
			st.StartedAt = &now
			st.CompletedAt = nil
			wf.Agents[stage] = st
			wf.recordTransition(stage, o.cfg.HistorySize, now)
		})

		stageStart := o.now()
		err := o.runStage(ctx, r, stage, wctx)
		if err == nil {
			o.metrics.RecordStage(stage, string(AgentCompleted), o.now().Sub(stageStart))
			o.update(r, func(wf *Workflow) {
				now := o.now()
				st := wf.Agents[stage]
				st.Status = AgentCompleted
				st.Progress = 100
				st.CurrentTask = "Completed"
				st.CompletedAt = &now
				wf.Agents[stage] = st
				wf.Progress = max(wf.Progress, stageProgress(i+1, len(plan)))
				wf.recordTransition(stage, o.cfg.HistorySize, now)
			})
			continue
		}

		if r.stopped.Load() {
			o.metrics.RecordStage(stage, string(StatusCancelled), o.now().Sub(stageStart))
			o.finishCancelled(r, stage)
			o.finishMetrics(span, StatusCancelled, start, nil)
			log.Info("workflow cancelled", zap.String("stage", stage))
			return
		}

		err = o.classify(ctx, stage, err)
		o.metrics.RecordStage(stage, string(AgentFailed), o.now().Sub(stageStart))
		o.finishFailed(r, stage, err, wctx)
		o.finishMetrics(span, StatusFailed, start, err)
		log.Warn("workflow failed", zap.String("stage", stage), zap.Error(err))
		return
	}

	if o.stopRequested(r) {
		o.finishCancelled(r, "")
		o.finishMetrics(span, StatusCancelled, start, nil)
		return
	}

	if err := o.finishCompleted(r, wctx); err != nil {
		o.finishMetrics(span, StatusFailed, start, err)
		log.Error("result assembly failed", zap.Error(err))
		return
	}
	if status := o.status(r); status != StatusCompleted {
		// another process recorded a terminal status first
		o.finishMetrics(span, status, start, nil)
		log.Info("workflow finished elsewhere", zap.String("status", string(status)))
		return
	}
	o.finishMetrics(span, StatusCompleted, start, nil)
	log.Info("workflow completed", zap.Duration("duration", o.now().Sub(start)))
	o.saveArtifact(r)
}

// =============================================================================
// 🛑 Cross-process stop
// =============================================================================

// watchCancel polls the shared store until the run ends or a stop is found.
func (o *Orchestrator) watchCancel(r *run, cr CancelRequests) {
	ticker := time.NewTicker(o.cfg.CancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if o.remoteCancel(r, cr) {
				return
			}
		}
	}
}

// stopRequested reports a local or recorded stop.
func (o *Orchestrator) stopRequested(r *run) bool {
	if r.stopped.Load() {
		return true
	}
	if cr, ok := o.store.(CancelRequests); ok {
		return o.remoteCancel(r, cr)
	}
	return false
}

func (o *Orchestrator) remoteCancel(r *run, cr CancelRequests) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), storeWriteTimeout)
	defer cancel()
	requested, err := cr.CancelRequested(ctx, r.id)
	if err != nil {
		o.logger.Debug("cancel flag read failed", zap.String("workflow_id", r.id), zap.Error(err))
		return false
	}
	if !requested {
		return false
	}
	if !r.stopped.Swap(true) {
		o.logger.Info("workflow stop requested by another instance", zap.String("workflow_id", r.id))
	}
	r.cancel()
	return true
}

func (o *Orchestrator) status(r *run) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wf.Status
}

// runStage invokes one adapter on a private copy of the context under the
// stage timeout. Results of an abandoned adapter are discarded.
func (o *Orchestrator) runStage(ctx context.Context, r *run, stage string, wctx *Context) error {
	adapter, ok := o.adapters[stage]
	if !ok {
		return fmt.Errorf("no adapter registered for stage %s", stage)
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()
	stageCtx, span := o.tracer.Start(stageCtx, "stage."+stage, trace.WithAttributes(
		attribute.String("workflow.stage", stage),
	))
	defer span.End()

	var (
		reportMu sync.Mutex
		closed   bool
	)
	report := func(progress int, task string) {
		reportMu.Lock()
		defer reportMu.Unlock()
		if closed {
			return
		}
		o.reportProgress(r, stage, progress, task)
	}

	scratch := wctx.Clone()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic in %s: %v", stage, rec)
			}
		}()
		done <- adapter.Run(stageCtx, scratch, report)
	}()

	var err error
	select {
	case err = <-done:
	case <-stageCtx.Done():
		err = stageCtx.Err()
	}

	reportMu.Lock()
	closed = true
	reportMu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return wctx.adopt(stage, scratch)
}

func (o *Orchestrator) reportProgress(r *run, stage string, progress int, task string) {
	progress = min(max(progress, 0), 100)
	o.update(r, func(wf *Workflow) {
		st := wf.Agents[stage]
		if st.Status != AgentActive {
			return
		}
		st.Progress = max(st.Progress, progress)
		if task != "" {
			st.CurrentTask = task
		}
		wf.Agents[stage] = st
		wf.recordTransition(stage, o.cfg.HistorySize, o.now())
	})
}

// classify maps a stage error to the public taxonomy.
func (o *Orchestrator) classify(ctx context.Context, stage string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewTimeoutError(fmt.Sprintf("workflow exceeded timeout of %s", o.cfg.WorkflowTimeout)).
			WithStage(stage).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), types.IsErrorCode(err, types.ErrTimeout):
		return types.NewTimeoutError(fmt.Sprintf("stage exceeded timeout of %s", o.cfg.StageTimeout)).
			WithStage(stage).WithCause(err)
	default:
		return types.NewAgentExecutionError(stage, err)
	}
}

// =============================================================================
// 🏁 Terminal transitions
// =============================================================================

func (o *Orchestrator) finishCompleted(r *run, wctx *Context) error {
	r.mu.Lock()
	snap := r.wf.Clone()
	r.mu.Unlock()

	result, err := o.assembler.Assemble(snap, wctx)
	if err != nil {
		ie := types.NewInternalError(messageAssemblyFailed).WithCause(err)
		o.update(r, func(wf *Workflow) {
			now := o.now()
			wf.Status = StatusFailed
			wf.CurrentAgent = ""
			wf.Message = fmt.Sprintf("Workflow failed while assembling results: %v", err)
			wf.Result = o.assembler.Partial(wctx)
			wf.CompletedAt = &now
		})
		return ie
	}

	o.update(r, func(wf *Workflow) {
		now := o.now()
		wf.Status = StatusCompleted
		wf.Progress = 100
		wf.CurrentAgent = ""
		wf.Message = messageCompleted
		wf.Result = result
		wf.CompletedAt = &now
	})
	return nil
}

func (o *Orchestrator) finishFailed(r *run, stage string, err error, wctx *Context) {
	o.update(r, func(wf *Workflow) {
		now := o.now()
		st := wf.Agents[stage]
		st.Status = AgentFailed
		st.CurrentTask = failureSummary(err)
		st.CompletedAt = &now
		wf.Agents[stage] = st
		wf.recordTransition(stage, o.cfg.HistorySize, now)

		wf.Status = StatusFailed
		wf.CurrentAgent = ""
		wf.Message = fmt.Sprintf("Workflow failed at stage %s: %s", stage, failureSummary(err))
		wf.Result = o.assembler.Partial(wctx)
		wf.CompletedAt = &now
	})
}

// finishCancelled records a cooperative stop. The in-flight stage, if any,
// returns to idle.
func (o *Orchestrator) finishCancelled(r *run, stage string) {
	o.update(r, func(wf *Workflow) {
		now := o.now()
		if stage != "" {
			st := wf.Agents[stage]
			st.Status = AgentIdle
			st.CurrentTask = "Cancelled"
			wf.Agents[stage] = st
			wf.recordTransition(stage, o.cfg.HistorySize, now)
		}
		wf.Status = StatusCancelled
		wf.CurrentAgent = ""
		wf.Message = messageCancelled
		wf.CompletedAt = &now
	})
}

func (o *Orchestrator) finishMetrics(span trace.Span, status Status, start time.Time, err error) {
	o.metrics.RecordWorkflowFinished(string(status), o.now().Sub(start))
	span.SetAttributes(attribute.String("workflow.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (o *Orchestrator) saveArtifact(r *run) {
	if o.artifacts == nil {
		return
	}
	r.mu.Lock()
	snap := r.wf.Clone()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), artifactSaveTimeout)
	defer cancel()
	if err := o.artifacts.SaveArtifact(ctx, snap); err != nil {
		o.logger.Warn("artifact save failed",
			zap.String("workflow_id", snap.ID),
			zap.Error(err))
	}
}

// update mutates the working snapshot and publishes a copy to the store.
// A terminal snapshot is never modified again, including one recorded in the
// store by another process.
func (o *Orchestrator) update(r *run, fn func(wf *Workflow)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wf.Status.IsTerminal() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if stored, err := o.store.Get(ctx, r.id); err == nil && stored.Status.IsTerminal() {
		r.wf = stored
		r.stopped.Store(true)
		r.cancel()
		o.logger.Warn("workflow already terminal in store, dropping update",
			zap.String("workflow_id", r.id),
			zap.String("status", string(stored.Status)))
		return
	}

	fn(r.wf)
	r.wf.UpdatedAt = o.now()
	if err := o.store.Put(ctx, r.wf); err != nil {
		o.logger.Error("status store write failed",
			zap.String("workflow_id", r.wf.ID),
			zap.Error(err))
	}
}

func failureSummary(err error) string {
	if te, ok := types.AsError(err); ok {
		if te.Cause != nil && te.Code == types.ErrAgentExecution {
			return te.Cause.Error()
		}
		return te.Message
	}
	return err.Error()
}
