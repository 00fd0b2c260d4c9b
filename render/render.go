// Package render turns generated markdown into the downloadable formats.
package render

import (
	"bytes"
	"html/template"

	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const markdownExtensions = blackfriday.CommonExtensions |
	blackfriday.HardLineBreak |
	blackfriday.NoEmptyLineBeforeBlock

var sanitizer = newSanitizer()

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// keep "language-xxx" on fenced code blocks and mermaid containers
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "div")
	return p
}

// MarkdownToHTML converts markdown to a sanitized HTML fragment.
func MarkdownToHTML(markdown string) string {
	raw := blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(markdownExtensions))
	return string(sanitizer.SanitizeBytes(raw))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 960px; margin: 0 auto; padding: 2rem; line-height: 1.6; color: #24292f; }
pre { background: #f6f8fa; padding: 1rem; overflow: auto; border-radius: 6px; }
code { font-family: SFMono-Regular, Consolas, "Liberation Mono", Menlo, monospace; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 6px 13px; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLPage renders markdown as a complete standalone HTML document.
func HTMLPage(title, markdown string) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		// sanitized by bluemonday above
		Body: template.HTML(MarkdownToHTML(markdown)),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// JSON renders v as indented JSON.
func JSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
