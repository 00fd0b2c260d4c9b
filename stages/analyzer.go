package stages

import (
	"context"
	"math"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/repo"
	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

// CodeAnalyzer 拉取仓库并提取代码结构
type CodeAnalyzer struct {
	fetcher repo.Fetcher
	logger  *zap.Logger
}

// NewCodeAnalyzer 创建代码分析阶段
func NewCodeAnalyzer(fetcher repo.Fetcher, logger *zap.Logger) *CodeAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeAnalyzer{
		fetcher: fetcher,
		logger:  logger.With(zap.String("stage", workflow.StageCodeAnalyzer)),
	}
}

func (a *CodeAnalyzer) Name() string { return workflow.StageCodeAnalyzer }

// Run 写入 wctx.Analysis
func (a *CodeAnalyzer) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	ref, err := repo.ParseURL(wctx.Request.RepositoryURL)
	if err != nil {
		return types.NewValidationError("repository_url", err.Error()).WithCause(err)
	}

	report(10, "Fetching repository "+ref.FullName())
	start := time.Now()
	snap, err := a.fetcher.Fetch(ctx, ref, repo.FetchOptions{Token: wctx.Request.GitHubToken})
	if err != nil {
		return err
	}
	a.logger.Debug("repository fetched",
		zap.String("workflow_id", wctx.WorkflowID),
		zap.String("repository", ref.FullName()),
		zap.String("source", snap.Source),
		zap.Int("files", len(snap.Files)),
		zap.Duration("took", time.Since(start)))

	report(30, "Parsing source files")
	analysis, err := analyze(ctx, snap, func(done, total int) {
		report(30+60*done/total, "Parsing source files")
	})
	if err != nil {
		return err
	}
	analysis.ProjectID = wctx.Request.ProjectID
	analysis.RepositoryURL = wctx.Request.RepositoryURL
	wctx.Analysis = analysis

	if analysis.FileCount == 0 {
		wctx.AddSuggestions("No supported source files were found; documentation is based on repository metadata only")
	}
	if wctx.Metadata == nil {
		wctx.Metadata = make(map[string]any)
	}
	wctx.Metadata["repository"] = map[string]any{
		"full_name": ref.FullName(),
		"url":       ref.HTTPSURL(),
		"branch":    snap.Branch,
		"source":    snap.Source,
		"truncated": snap.Truncated,
	}

	report(100, "Analysis complete")
	return nil
}

// analyze 遍历快照中的源码文件并汇总
func analyze(ctx context.Context, snap *repo.Snapshot, progress func(done, total int)) (*workflow.Analysis, error) {
	files := make([]repo.File, 0, len(snap.Files))
	for _, f := range snap.Files {
		if repo.IsAnalyzable(f.Path) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	out := &workflow.Analysis{
		Structure:            make(map[string][]string),
		LanguageDistribution: make(map[string]float64),
	}
	langCount := make(map[string]int)
	deps := make(map[string]bool)

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lang := repo.LanguageOf(f.Path)
		lines := splitLines(f.Content)

		out.FileCount++
		out.LinesOfCode += len(lines)
		langCount[lang]++
		dir := path.Dir(f.Path)
		out.Structure[dir] = append(out.Structure[dir], path.Base(f.Path))

		if parse, ok := parsers[lang]; ok {
			facts := parse(f.Path, lines)
			out.Functions = append(out.Functions, facts.functions...)
			out.Classes = append(out.Classes, facts.classes...)
			out.APIEndpoints = append(out.APIEndpoints, facts.endpoints...)
			for _, d := range facts.imports {
				if d != "" {
					deps[d] = true
				}
			}
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	for d := range deps {
		out.Dependencies = append(out.Dependencies, d)
	}
	slices.Sort(out.Dependencies)

	best := 0
	for lang, n := range langCount {
		out.LanguageDistribution[lang] = math.Round(float64(n)/float64(out.FileCount)*100) / 100
		if n > best || (n == best && lang < out.PrimaryLanguage) {
			best, out.PrimaryLanguage = n, lang
		}
	}
	return out, nil
}

// splitLines 按行切分，末尾换行不产生空行
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
