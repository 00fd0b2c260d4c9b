package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 🧪 Two replicas sharing one Redis store
// =============================================================================

func replicaRegistry(started chan<- struct{}, release <-chan struct{}) workflow.Registry {
	noop := func(name string) workflow.AgentAdapter {
		return workflow.AdapterFunc{StageName: name, Fn: func(context.Context, *workflow.Context, workflow.ProgressFunc) error {
			return nil
		}}
	}
	return workflow.NewRegistry(
		workflow.AdapterFunc{StageName: workflow.StageCodeAnalyzer, Fn: func(_ context.Context, w *workflow.Context, _ workflow.ProgressFunc) error {
			started <- struct{}{}
			<-release
			w.Analysis = &workflow.Analysis{ProjectID: w.Request.ProjectID, FileCount: 1, PrimaryLanguage: "go"}
			return nil
		}},
		noop(workflow.StageDocWriter),
		noop(workflow.StageDiagramGenerator),
		noop(workflow.StageTranslation),
		noop(workflow.StageQualityReviewer),
	)
}

func newReplica(t *testing.T, s *RedisStore, reg workflow.Registry) *workflow.Manager {
	t.Helper()
	orch := workflow.NewOrchestrator(s, reg, nil, workflow.OrchestratorConfig{
		CancelPollInterval: 10 * time.Millisecond,
	})
	m := workflow.NewManager(s, orch)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func replicaRequest() workflow.Request {
	return workflow.Request{
		RepositoryURL:  "https://github.com/acme/widgets",
		ProjectID:      "widgets",
		OutputFormats:  []string{workflow.FormatMarkdown},
		TargetAudience: workflow.AudienceDevelopers,
	}
}

func TestRedisStore_StopFromOtherReplica(t *testing.T) {
	_, client := setupRedis(t)
	shared := NewRedisStore(client, "docflow:replicas:", time.Hour, nil)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	a := newReplica(t, shared, replicaRegistry(started, release))
	b := newReplica(t, shared, replicaRegistry(make(chan struct{}, 1), make(chan struct{})))

	ctx := context.Background()
	wf, err := a.Create(ctx, replicaRequest())
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stage did not start")
	}

	// b does not own the run, so it only records the request
	ack, err := b.Stop(ctx, wf.ID)
	require.NoError(t, err)
	assert.False(t, ack.Status.IsTerminal())

	requested, err := shared.CancelRequested(ctx, wf.ID)
	require.NoError(t, err)
	assert.True(t, requested)

	require.Eventually(t, func() bool {
		got, err := shared.Get(ctx, wf.ID)
		return err == nil && got.Status == workflow.StatusCancelled
	}, 5*time.Second, 10*time.Millisecond)

	// the abandoned stage finishing late must not revive the run
	close(release)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))

	got, err := shared.Get(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, got.Status)
	assert.Equal(t, "Workflow cancelled by user", got.Message)
	assert.Nil(t, got.Result)
	assert.Equal(t, workflow.AgentIdle, got.Agents[workflow.StageCodeAnalyzer].Status)
}

func TestRedisStore_StopTakesOverStaleWorkflow(t *testing.T) {
	_, client := setupRedis(t)
	shared := NewRedisStore(client, "docflow:replicas:", time.Hour, nil)
	b := newReplica(t, shared, replicaRegistry(make(chan struct{}, 1), make(chan struct{})))

	ctx := context.Background()
	orphan := sampleWorkflow("orphan-1", time.Now().Add(-2*time.Hour))
	orphan.Status = workflow.StatusProcessing
	orphan.CurrentAgent = workflow.StageDocWriter
	st := orphan.Agents[workflow.StageDocWriter]
	st.Status = workflow.AgentActive
	orphan.Agents[workflow.StageDocWriter] = st
	orphan.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, shared.Put(ctx, orphan))

	got, err := b.Stop(ctx, "orphan-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, got.Status)
	assert.Equal(t, workflow.AgentIdle, got.Agents[workflow.StageDocWriter].Status)

	stored, err := shared.Get(ctx, "orphan-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, stored.Status)
}

func TestRedisStore_CancelRequestExpires(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, "docflow:replicas:", time.Minute, nil)
	ctx := context.Background()

	requested, err := s.CancelRequested(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, requested)

	require.NoError(t, s.RequestCancel(ctx, "wf-1"))
	requested, err = s.CancelRequested(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, requested)

	mr.FastForward(2 * time.Minute)
	requested, err = s.CancelRequested(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, requested)

	// request flags never show up as workflows
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
