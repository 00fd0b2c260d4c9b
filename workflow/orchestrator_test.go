package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docflow/types"
)

func TestOrchestrator_CompletesFullPipeline(t *testing.T) {
	m, store := newTestManager(t, happyStages(), OrchestratorConfig{})
	ctx := context.Background()

	created, err := m.Create(ctx, validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusCompleted)
	assert.Equal(t, 100, wf.Progress)
	assert.Empty(t, wf.CurrentAgent)
	assert.Equal(t, messageCompleted, wf.Message)
	require.NotNil(t, wf.CompletedAt)
	require.NotNil(t, wf.Result)

	// one entry per requested format
	for _, f := range validRequest().OutputFormats {
		assert.NotEmpty(t, wf.Result.Formats[f], "format %s", f)
	}
	assert.Equal(t, sampleDoc, wf.Result.Formats[FormatMarkdown])
	assert.Contains(t, wf.Result.Formats[FormatHTML], "<!DOCTYPE html>")
	assert.Contains(t, wf.Result.Formats[FormatJSON], `"workflow_id": "`+wf.ID+`"`)

	require.NotNil(t, wf.Result.Quality)
	assert.InDelta(t, 0.4*0.8+0.35*0.6+0.25*0.5, wf.Result.Quality.OverallScore, 1e-9)
	assert.Equal(t, []string{"Add more code examples", "Add a troubleshooting section"}, wf.Result.Quality.Suggestions)
	assert.Equal(t, 3, wf.Result.RepositorySummary.FileCount)
	assert.Equal(t, "widgets", wf.Result.RepositorySummary.ProjectName)

	for _, s := range PipelineStages {
		assert.Equal(t, AgentCompleted, wf.Agents[s].Status, s)
	}

	assertRunInvariants(t, store.history(created.ID))
}

func TestOrchestrator_SkippedStagesExcludedFromProgress(t *testing.T) {
	var seen []int
	reg := with(happyStages(), stage(StageDocWriter, func(_ context.Context, w *Context, _ ProgressFunc) error {
		w.Documentation = sampleDoc
		return nil
	}))
	m, store := newTestManager(t, reg, OrchestratorConfig{})

	req := validRequest()
	req.IncludeDiagrams = false
	req.TranslationLanguages = nil
	created, err := m.Create(context.Background(), req)
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusCompleted)
	assert.Equal(t, AgentIdle, wf.Agents[StageDiagramGenerator].Status)
	assert.Equal(t, TaskSkipped, wf.Agents[StageDiagramGenerator].CurrentTask)
	assert.Equal(t, AgentIdle, wf.Agents[StageTranslation].Status)

	for _, snap := range store.history(created.ID) {
		seen = append(seen, snap.Progress)
	}
	// three stages: 0, 33, 67, 100
	assert.Contains(t, seen, 33)
	assert.Contains(t, seen, 67)
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestOrchestrator_StageFailureKeepsPartialResult(t *testing.T) {
	boom := errors.New("mermaid renderer exploded")
	reg := with(happyStages(), stage(StageDiagramGenerator, func(context.Context, *Context, ProgressFunc) error {
		return boom
	}))
	m, store := newTestManager(t, reg, OrchestratorConfig{})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusFailed)
	assert.Contains(t, wf.Message, StageDiagramGenerator)
	assert.Contains(t, wf.Message, "mermaid renderer exploded")
	assert.Empty(t, wf.CurrentAgent)
	assert.Equal(t, AgentFailed, wf.Agents[StageDiagramGenerator].Status)
	assert.Equal(t, AgentCompleted, wf.Agents[StageDocWriter].Status)
	// later stages never ran
	assert.Equal(t, AgentIdle, wf.Agents[StageTranslation].Status)
	assert.Equal(t, AgentIdle, wf.Agents[StageQualityReviewer].Status)

	require.NotNil(t, wf.Result)
	assert.Equal(t, sampleDoc, wf.Result.Documentation)
	require.NotNil(t, wf.Result.Analysis)
	assert.Equal(t, 3, wf.Result.Analysis.FileCount)
	assert.Empty(t, wf.Result.Formats)

	assertRunInvariants(t, store.history(created.ID))
}

func TestOrchestrator_PanicBecomesFailure(t *testing.T) {
	reg := with(happyStages(), stage(StageDocWriter, func(context.Context, *Context, ProgressFunc) error {
		panic("nil map")
	}))
	m, _ := newTestManager(t, reg, OrchestratorConfig{})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusFailed)
	assert.Contains(t, wf.Message, StageDocWriter)
	assert.Contains(t, wf.Message, "nil map")
}

func TestOrchestrator_MissingAdapterFails(t *testing.T) {
	reg := happyStages()
	delete(reg, StageQualityReviewer)
	m, _ := newTestManager(t, reg, OrchestratorConfig{})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusFailed)
	assert.Contains(t, wf.Message, StageQualityReviewer)
}

func TestOrchestrator_StopDuringStage(t *testing.T) {
	started := make(chan struct{})
	reg := with(happyStages(), blockingStage(StageDocWriter, started))
	m, store := newTestManager(t, reg, OrchestratorConfig{})
	ctx := context.Background()

	created, err := m.Create(ctx, validRequest())
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("doc_writer never started")
	}

	running, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, running.Status)
	assert.Equal(t, StageDocWriter, running.CurrentAgent)

	_, err = m.Stop(ctx, created.ID)
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusCancelled)
	assert.Empty(t, wf.CurrentAgent)
	assert.Equal(t, messageCancelled, wf.Message)
	// in-flight stage goes back to idle, never failed
	assert.Equal(t, AgentIdle, wf.Agents[StageDocWriter].Status)
	assert.Equal(t, AgentCompleted, wf.Agents[StageCodeAnalyzer].Status)

	// stopping again is a no-op
	again, err := m.Stop(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)

	assertRunInvariants(t, store.history(created.ID))
}

func TestOrchestrator_StageTimeout(t *testing.T) {
	started := make(chan struct{})
	reg := with(happyStages(), blockingStage(StageDiagramGenerator, started))
	m, _ := newTestManager(t, reg, OrchestratorConfig{StageTimeout: 30 * time.Millisecond})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusFailed)
	assert.Contains(t, wf.Message, StageDiagramGenerator)
	assert.Contains(t, wf.Message, "stage exceeded timeout")
	assert.Equal(t, AgentFailed, wf.Agents[StageDiagramGenerator].Status)
	require.NotNil(t, wf.Result)
	assert.Equal(t, sampleDoc, wf.Result.Documentation)
}

func TestOrchestrator_WorkflowTimeout(t *testing.T) {
	// a stage that ignores ctx still loses to the workflow deadline
	reg := with(happyStages(), stage(StageTranslation, func(context.Context, *Context, ProgressFunc) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	}))
	m, _ := newTestManager(t, reg, OrchestratorConfig{WorkflowTimeout: 50 * time.Millisecond})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)

	wf := waitForStatus(t, m, created.ID, StatusFailed)
	assert.Contains(t, wf.Message, StageTranslation)
	assert.Contains(t, wf.Message, "workflow exceeded timeout")
}

func TestOrchestrator_ClassifyTimeoutCodes(t *testing.T) {
	o := NewOrchestrator(NewMemoryStore(), nil, nil, OrchestratorConfig{})

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err := o.classify(expired, StageDocWriter, context.DeadlineExceeded)
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
	assert.Contains(t, err.Error(), "workflow exceeded")

	err = o.classify(context.Background(), StageDocWriter, context.DeadlineExceeded)
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
	assert.Contains(t, err.Error(), "stage exceeded")

	err = o.classify(context.Background(), StageDocWriter, errors.New("boom"))
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrAgentExecution, te.Code)
	assert.Equal(t, StageDocWriter, te.Stage)
}

func TestOrchestrator_QueuedWorkflowStaysInitiated(t *testing.T) {
	started := make(chan struct{})
	reg := with(happyStages(), blockingStage(StageCodeAnalyzer, started))
	m, _ := newTestManager(t, reg, OrchestratorConfig{MaxConcurrent: 1})
	ctx := context.Background()

	first, err := m.Create(ctx, validRequest())
	require.NoError(t, err)
	<-started

	second, err := m.Create(ctx, validRequest())
	require.NoError(t, err)

	// the only slot is held by the first workflow
	time.Sleep(30 * time.Millisecond)
	queued, err := m.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInitiated, queued.Status)
	assert.Equal(t, 0, queued.Progress)

	// a queued workflow can be cancelled before it ever runs
	_, err = m.Stop(ctx, second.ID)
	require.NoError(t, err)
	wf := waitForStatus(t, m, second.ID, StatusCancelled)
	assert.Empty(t, wf.CurrentAgent)

	_, err = m.Stop(ctx, first.ID)
	require.NoError(t, err)
	waitForStatus(t, m, first.ID, StatusCancelled)
}

func TestOrchestrator_ProgressReportsUpdateAgent(t *testing.T) {
	release := make(chan struct{})
	reported := make(chan struct{})
	reg := with(happyStages(), stage(StageDocWriter, func(ctx context.Context, w *Context, report ProgressFunc) error {
		report(40, "Drafting overview")
		report(20, "") // never goes backwards
		close(reported)
		<-release
		w.Documentation = sampleDoc
		return nil
	}))
	m, _ := newTestManager(t, reg, OrchestratorConfig{})
	ctx := context.Background()

	created, err := m.Create(ctx, validRequest())
	require.NoError(t, err)
	<-reported

	wf, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	st := wf.Agents[StageDocWriter]
	assert.Equal(t, AgentActive, st.Status)
	assert.Equal(t, 40, st.Progress)
	assert.Equal(t, "Drafting overview", st.CurrentTask)
	require.NotNil(t, st.StartedAt)

	close(release)
	waitForStatus(t, m, created.ID, StatusCompleted)
}

type countingSink struct{ saved atomic.Int32 }

func (s *countingSink) SaveArtifact(context.Context, *Workflow) error {
	s.saved.Add(1)
	return errors.New("artifact store down")
}

type countingMetrics struct {
	started, finished, stages atomic.Int32
}

func (c *countingMetrics) RecordWorkflowStarted()                       { c.started.Add(1) }
func (c *countingMetrics) RecordWorkflowFinished(string, time.Duration) { c.finished.Add(1) }
func (c *countingMetrics) RecordStage(string, string, time.Duration)    { c.stages.Add(1) }

func TestOrchestrator_ArtifactFailureDoesNotChangeStatus(t *testing.T) {
	store := NewMemoryStore()
	sink := &countingSink{}
	metrics := &countingMetrics{}
	orch := NewOrchestrator(store, happyStages(), nil, OrchestratorConfig{},
		WithArtifactSink(sink), WithMetrics(metrics))
	m := NewManager(store, orch)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)
	waitForStatus(t, m, created.ID, StatusCompleted)

	require.Eventually(t, func() bool { return sink.saved.Load() == 1 }, time.Second, 2*time.Millisecond)
	wf, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, wf.Status)
	assert.Equal(t, int32(1), metrics.started.Load())
	assert.Equal(t, int32(1), metrics.finished.Load())
	assert.Equal(t, int32(len(PipelineStages)), metrics.stages.Load())
}

func TestOrchestrator_ShutdownCancelsRunning(t *testing.T) {
	started := make(chan struct{})
	store := NewMemoryStore()
	orch := NewOrchestrator(store, with(happyStages(), blockingStage(StageDocWriter, started)), nil, OrchestratorConfig{})
	m := NewManager(store, orch)

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	wf, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, wf.Status)

	// no new work after shutdown
	_, err = m.Create(context.Background(), validRequest())
	assert.True(t, types.IsErrorCode(err, types.ErrServiceUnavailable))
}

func TestOrchestrator_StoredTerminalStatusWins(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	reg := with(happyStages(), stage(StageDocWriter, func(ctx context.Context, _ *Context, report ProgressFunc) error {
		once.Do(func() { close(started) })
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
				report(10, "writing")
			}
		}
	}))
	m, store := newTestManager(t, reg, OrchestratorConfig{})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)
	<-started

	// another process records the run as cancelled
	snap, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	snap.Status = StatusCancelled
	snap.Message = "cancelled elsewhere"
	require.NoError(t, store.MemoryStore.Put(context.Background(), snap))

	require.Eventually(t, func() bool { return !m.orch.Running(created.ID) }, 5*time.Second, 10*time.Millisecond)

	wf, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, wf.Status)
	assert.Equal(t, "cancelled elsewhere", wf.Message)
	for _, put := range store.history(created.ID) {
		assert.NotEqual(t, StatusCompleted, put.Status)
	}
}

func TestOrchestrator_HistoryIsBounded(t *testing.T) {
	reg := with(happyStages(), stage(StageDocWriter, func(_ context.Context, w *Context, report ProgressFunc) error {
		for i := 1; i <= 50; i++ {
			report(i*2, "writing")
		}
		w.Documentation = sampleDoc
		return nil
	}))
	m, _ := newTestManager(t, reg, OrchestratorConfig{HistorySize: 20})

	created, err := m.Create(context.Background(), validRequest())
	require.NoError(t, err)
	wf := waitForStatus(t, m, created.ID, StatusCompleted)

	assert.Len(t, wf.History, 20)
	assert.Len(t, wf.RecentHistory(StatusHistorySize), StatusHistorySize)
	last := wf.History[len(wf.History)-1]
	assert.Equal(t, StageQualityReviewer, last.Agent)
	assert.Equal(t, AgentCompleted, last.Status)
}

// assertRunInvariants checks every snapshot written during a run.
func assertRunInvariants(t *testing.T, snaps []*Workflow) {
	t.Helper()
	require.NotEmpty(t, snaps)
	assert.Equal(t, StatusInitiated, snaps[0].Status)
	assert.Equal(t, 0, snaps[0].Progress)
	assert.Nil(t, snaps[0].Result)

	prev := 0
	for i, s := range snaps {
		if s.Status == StatusProcessing {
			assert.GreaterOrEqual(t, s.Progress, prev, "snapshot %d progress went backwards", i)
			prev = s.Progress
		}
		assert.LessOrEqual(t, s.ActiveAgents(), 1, "snapshot %d has more than one active agent", i)
		if i > 0 && snaps[i-1].Status.IsTerminal() {
			t.Errorf("snapshot %d written after terminal status", i)
		}
	}
}
