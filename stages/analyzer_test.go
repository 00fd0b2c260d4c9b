package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docflow/repo"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// Fixtures
// =============================================================================

func testRequest() workflow.Request {
	return workflow.Request{
		RepositoryURL:        "https://github.com/acme/widgets",
		ProjectID:            "widgets",
		OutputFormats:        []string{workflow.FormatMarkdown},
		IncludeDiagrams:      true,
		TargetAudience:       workflow.AudienceDevelopers,
		TranslationLanguages: []string{"es"},
	}
}

func noProgress(int, string) {}

type staticFetcher struct {
	files []repo.File
	err   error
	opts  repo.FetchOptions
}

func (f *staticFetcher) Fetch(ctx context.Context, ref repo.Ref, opts repo.FetchOptions) (*repo.Snapshot, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &repo.Snapshot{Ref: ref, Branch: "main", Files: f.files, Source: "static"}, nil
}

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, name(it))
	}
	return out
}

func fnName(f workflow.Function) string { return f.Name }
func clsName(c workflow.Class) string   { return c.Name }

// =============================================================================
// CodeAnalyzer
// =============================================================================

func TestCodeAnalyzer_SampleRepository(t *testing.T) {
	a := NewCodeAnalyzer(repo.NewSampleFetcher(), nil)
	wctx := workflow.NewContext("wf-1", testRequest())

	var progress []int
	err := a.Run(context.Background(), wctx, func(p int, _ string) { progress = append(progress, p) })
	require.NoError(t, err)

	an := wctx.Analysis
	require.NotNil(t, an)
	assert.Equal(t, "widgets", an.ProjectID)
	assert.Equal(t, 4, an.FileCount)
	assert.Greater(t, an.LinesOfCode, 50)
	assert.Equal(t, "python", an.PrimaryLanguage)
	assert.Equal(t, map[string]float64{"python": 0.5, "go": 0.25, "javascript": 0.25}, an.LanguageDistribution)
	assert.Equal(t, []string{"models.py", "server.py"}, an.Structure["app"])
	assert.Equal(t, []string{"main.go"}, an.Structure["cmd/worker"])

	assert.Equal(t, []string{"list_users", "create_user", "health", "main", "formatUser"}, names(an.Functions, fnName))
	assert.Equal(t, []string{"User", "UserRepository", "Worker", "ApiClient"}, names(an.Classes, clsName))
	assert.Equal(t, []string{"app", "axios", "dataclasses", "flask", "log", "time", "uuid"}, an.Dependencies)

	require.Len(t, an.APIEndpoints, 3)
	assert.Equal(t, workflow.Endpoint{Method: "GET", Path: "/users", Function: "list_users", File: "app/server.py"}, an.APIEndpoints[0])
	assert.Equal(t, "POST", an.APIEndpoints[1].Method)
	assert.Equal(t, "/health", an.APIEndpoints[2].Path)

	assert.Equal(t, "Return all users.", an.Functions[0].Docstring)
	assert.Equal(t, []string{"to_dict", "__init__", "add", "all"}, append(an.Classes[0].Methods, an.Classes[1].Methods...))
	assert.Equal(t, []string{"Run"}, an.Classes[2].Methods)
	assert.Equal(t, []string{"constructor", "listUsers"}, an.Classes[3].Methods)

	repoMeta, ok := wctx.Metadata["repository"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sample", repoMeta["source"])
	assert.Equal(t, "acme/widgets", repoMeta["full_name"])

	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestCodeAnalyzer_PassesToken(t *testing.T) {
	f := &staticFetcher{}
	req := testRequest()
	req.GitHubToken = "ghp_secret"
	wctx := workflow.NewContext("wf-1", req)

	require.NoError(t, NewCodeAnalyzer(f, nil).Run(context.Background(), wctx, noProgress))
	assert.Equal(t, "ghp_secret", f.opts.Token)
	assert.Equal(t, 0, wctx.Analysis.FileCount)
	assert.NotEmpty(t, wctx.Suggestions)
}

func TestCodeAnalyzer_FetchErrorSurfaces(t *testing.T) {
	fetchErr := types.NewNotFoundError("repository acme/widgets not found")
	f := &staticFetcher{err: fetchErr}
	wctx := workflow.NewContext("wf-1", testRequest())

	err := NewCodeAnalyzer(f, nil).Run(context.Background(), wctx, noProgress)
	assert.True(t, errors.Is(err, fetchErr))
	assert.Nil(t, wctx.Analysis)
}

func TestCodeAnalyzer_InvalidURL(t *testing.T) {
	req := testRequest()
	req.RepositoryURL = "ftp://example.com/x"
	wctx := workflow.NewContext("wf-1", req)

	err := NewCodeAnalyzer(&staticFetcher{}, nil).Run(context.Background(), wctx, noProgress)
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "repository_url", te.Field)
}

func TestCodeAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wctx := workflow.NewContext("wf-1", testRequest())

	err := NewCodeAnalyzer(repo.NewSampleFetcher(), nil).Run(ctx, wctx, noProgress)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_SkipsVendoredAndUnknownFiles(t *testing.T) {
	snap := &repo.Snapshot{Files: []repo.File{
		{Path: "main.go", Content: "package main\n\nfunc main() {}\n"},
		{Path: "vendor/x/x.go", Content: "package x\n\nfunc X() {}\n"},
		{Path: "README.md", Content: "# hi\n"},
	}}
	an, err := analyze(context.Background(), snap, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, an.FileCount)
	assert.Equal(t, 3, an.LinesOfCode)
	assert.Equal(t, []string{"main"}, names(an.Functions, fnName))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb"))
}
