package repo

import (
	"context"
	"path"
	"strings"
	"time"
)

// SourceExtensions 参与分析的源码扩展名
var SourceExtensions = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".go":   "go",
	".c":    "c",
	".cpp":  "cpp",
	".h":    "c",
	".hpp":  "cpp",
	".rb":   "ruby",
	".php":  "php",
}

// LanguageOf 返回文件对应的语言，不是源码时返回空串
func LanguageOf(p string) string {
	return SourceExtensions[strings.ToLower(path.Ext(p))]
}

// skipDirs 不参与分析的目录
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
}

// IsAnalyzable 判断路径是否为需要分析的源码文件
func IsAnalyzable(p string) bool {
	if LanguageOf(p) == "" {
		return false
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if skipDirs[seg] {
			return false
		}
	}
	return true
}

// File 仓库中的一个源码文件
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Snapshot 仓库源码快照
type Snapshot struct {
	Ref       Ref       `json:"ref"`
	Branch    string    `json:"branch,omitempty"`
	Files     []File    `json:"files"`
	Truncated bool      `json:"truncated"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FetchOptions 拉取选项
type FetchOptions struct {
	// Token 访问私有仓库的令牌，为空时使用默认令牌
	Token string
}

// Fetcher 仓库拉取接口
type Fetcher interface {
	Fetch(ctx context.Context, ref Ref, opts FetchOptions) (*Snapshot, error)
}
