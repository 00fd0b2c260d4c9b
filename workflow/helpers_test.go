package workflow

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test fixtures
// =============================================================================

func validRequest() Request {
	return Request{
		RepositoryURL:        "https://github.com/acme/widgets",
		ProjectID:            "widgets",
		OutputFormats:        []string{FormatMarkdown, FormatHTML, FormatJSON},
		IncludeDiagrams:      true,
		TargetAudience:       AudienceDevelopers,
		TranslationLanguages: []string{"es"},
	}
}

const sampleDoc = "# Widgets\n\n## Overview\n\nWidgets does things.\n\n## Usage\n\n```go\nwidgets.Run()\n```\n"

func stage(name string, fn func(ctx context.Context, w *Context, report ProgressFunc) error) AgentAdapter {
	return AdapterFunc{StageName: name, Fn: fn}
}

// happyStages returns adapters that each write their own output field.
func happyStages() Registry {
	return NewRegistry(
		stage(StageCodeAnalyzer, func(_ context.Context, w *Context, report ProgressFunc) error {
			report(50, "Parsing files")
			w.Analysis = &Analysis{
				ProjectID:       w.Request.ProjectID,
				FileCount:       3,
				LinesOfCode:     120,
				PrimaryLanguage: "go",
				Functions:       []Function{{Name: "Run", File: "main.go"}},
			}
			return nil
		}),
		stage(StageDocWriter, func(_ context.Context, w *Context, _ ProgressFunc) error {
			w.Documentation = sampleDoc
			return nil
		}),
		stage(StageDiagramGenerator, func(_ context.Context, w *Context, _ ProgressFunc) error {
			w.Diagrams = []Diagram{{Type: "structure", Title: "Structure", Content: "graph TD\n  A-->B", Format: "mermaid"}}
			return nil
		}),
		stage(StageTranslation, func(_ context.Context, w *Context, _ ProgressFunc) error {
			w.Translations = map[string]Translation{"es": {Language: "spanish", Code: "es", Content: "# Widgets (es)"}}
			return nil
		}),
		stage(StageQualityReviewer, func(_ context.Context, w *Context, _ ProgressFunc) error {
			w.Quality = &Quality{
				Completeness: 0.8,
				Accuracy:     0.6,
				Clarity:      0.5,
				Suggestions:  []string{"Add more code examples"},
			}
			w.AddSuggestions("add more   code examples", "Add a troubleshooting section")
			return nil
		}),
	)
}

// blockingStage signals started and blocks until ctx is done.
func blockingStage(name string, started chan<- struct{}) AgentAdapter {
	var once sync.Once
	return stage(name, func(ctx context.Context, _ *Context, _ ProgressFunc) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})
}

func with(reg Registry, adapters ...AgentAdapter) Registry {
	out := make(Registry, len(reg)+len(adapters))
	for k, v := range reg {
		out[k] = v
	}
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}

// recordingStore keeps every snapshot written so invariants can be checked
// over the whole run.
type recordingStore struct {
	*MemoryStore
	mu    sync.Mutex
	puts  map[string][]*Workflow
	putFn func(wf *Workflow) error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore(), puts: make(map[string][]*Workflow)}
}

func (s *recordingStore) Put(ctx context.Context, wf *Workflow) error {
	if s.putFn != nil {
		if err := s.putFn(wf); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.puts[wf.ID] = append(s.puts[wf.ID], wf.Clone())
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, wf)
}

func (s *recordingStore) history(id string) []*Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Workflow(nil), s.puts[id]...)
}

func newTestManager(t *testing.T, reg Registry, cfg OrchestratorConfig, opts ...ManagerOption) (*Manager, *recordingStore) {
	t.Helper()
	store := newRecordingStore()
	orch := NewOrchestrator(store, reg, NewResultAssembler(DefaultWeights()), cfg)
	m := NewManager(store, orch, append([]ManagerOption{WithAIPowered(true)}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, store
}

func waitForStatus(t *testing.T, m *Manager, id string, want ...Status) *Workflow {
	t.Helper()
	require.Eventually(t, func() bool {
		wf, err := m.Get(context.Background(), id)
		return err == nil && slices.Contains(want, wf.Status)
	}, 5*time.Second, 2*time.Millisecond, "workflow %s never reached %v", id, want)
	wf, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	return wf
}
