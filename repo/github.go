package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/tlsutil"
	"github.com/BaSui01/docflow/types"
)

const githubProvider = "github"

// GitHubFetcher 通过 GitHub REST API 拉取仓库源码
type GitHubFetcher struct {
	cfg    config.GitHubConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewGitHubFetcher 创建 GitHub 拉取器
func NewGitHubFetcher(cfg config.GitHubConfig, logger *zap.Logger) *GitHubFetcher {
	def := config.DefaultGitHubConfig()
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = def.APIBaseURL
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = def.MaxFileBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := tlsutil.NewHTTPClient(cfg.Timeout,
		tlsutil.WithUserAgent("docflow-github-fetcher"),
		tlsutil.WithMaxIdleConnsPerHost(cfg.FetchConcurrency))
	return &GitHubFetcher{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "github_fetcher")),
		now:    time.Now,
	}
}

type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size int    `json:"size"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// Fetch 拉取仓库默认分支下的源码文件
func (f *GitHubFetcher) Fetch(ctx context.Context, ref Ref, opts FetchOptions) (*Snapshot, error) {
	token := opts.Token
	if token == "" {
		token = f.cfg.Token
	}

	var info repoInfo
	if err := f.getJSON(ctx, token, f.apiURL("repos", ref.Owner, ref.Name), &info); err != nil {
		return nil, err
	}
	branch := info.DefaultBranch
	if branch == "" {
		branch = "HEAD"
	}

	var tree treeResponse
	treeURL := f.apiURL("repos", ref.Owner, ref.Name, "git", "trees", branch) + "?recursive=1"
	if err := f.getJSON(ctx, token, treeURL, &tree); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(tree.Tree))
	for _, e := range tree.Tree {
		if e.Type == "blob" && e.Size <= f.cfg.MaxFileBytes && IsAnalyzable(e.Path) {
			paths = append(paths, e.Path)
		}
	}
	sort.Strings(paths)
	truncated := tree.Truncated
	if len(paths) > f.cfg.MaxFiles {
		paths = paths[:f.cfg.MaxFiles]
		truncated = true
	}

	files := make([]File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.FetchConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			content, err := f.getRaw(gctx, token, ref, branch, p)
			if err != nil {
				return err
			}
			files[i] = File{Path: p, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.Info("repository fetched",
		zap.String("repository", ref.FullName()),
		zap.String("branch", branch),
		zap.Int("files", len(files)),
		zap.Bool("truncated", truncated))

	return &Snapshot{
		Ref:       ref,
		Branch:    branch,
		Files:     files,
		Truncated: truncated,
		Source:    githubProvider,
		FetchedAt: f.now().UTC(),
	}, nil
}

func (f *GitHubFetcher) apiURL(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.TrimRight(f.cfg.APIBaseURL, "/") + "/" + strings.Join(escaped, "/")
}

func (f *GitHubFetcher) newRequest(ctx context.Context, token, target, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (f *GitHubFetcher) do(req *http.Request) (*http.Response, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, types.NewUpstreamError(githubProvider, err.Error()).WithRetryable(true).WithCause(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, mapGitHubError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (f *GitHubFetcher) getJSON(ctx context.Context, token, target string, dest any) error {
	req, err := f.newRequest(ctx, token, target, "application/vnd.github+json")
	if err != nil {
		return err
	}
	resp, err := f.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return types.NewUpstreamError(githubProvider, "invalid response body").WithCause(err)
	}
	return nil
}

func (f *GitHubFetcher) getRaw(ctx context.Context, token string, ref Ref, branch, p string) (string, error) {
	target := f.apiURL("repos", ref.Owner, ref.Name, "contents") + "/" + escapePath(p) + "?ref=" + url.QueryEscape(branch)
	req, err := f.newRequest(ctx, token, target, "application/vnd.github.raw")
	if err != nil {
		return "", err
	}
	resp, err := f.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.cfg.MaxFileBytes)+1))
	if err != nil {
		return "", types.NewUpstreamError(githubProvider, "failed to read file").WithCause(err).WithRetryable(true)
	}
	return string(truncateUTF8(data, f.cfg.MaxFileBytes)), nil
}

// truncateUTF8 cuts data to at most n bytes without splitting a rune.
func truncateUTF8(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	for i := 0; i < utf8.UTFMax && n > 0 && !utf8.RuneStart(data[n]); i++ {
		n--
	}
	return data[:n]
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// mapGitHubError 将 GitHub 状态码映射为统一错误
func mapGitHubError(status int, body string) *types.Error {
	switch status {
	case http.StatusNotFound:
		return types.NewNotFoundError("repository not found or not accessible").
			WithProvider(githubProvider).
			WithCause(fmt.Errorf("github: %s", body))
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, "github token rejected").
			WithHTTPStatus(status).
			WithProvider(githubProvider)
	case http.StatusForbidden, http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, "github access forbidden or rate limited").
			WithHTTPStatus(status).
			WithProvider(githubProvider).
			WithCause(fmt.Errorf("github: %s", body))
	default:
		return types.NewUpstreamError(githubProvider, fmt.Sprintf("github returned status %d", status)).
			WithRetryable(status >= 500)
	}
}
