package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/BaSui01/docflow/types"
)

// Schema 预编译的请求体 JSON Schema
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompileSchema 编译 schema，失败时 panic（仅用于包级常量）
func MustCompileSchema(name, source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Validate 校验 JSON 文档。第一个违规项转为 VALIDATION_ERROR，Field 为顶层字段名。
func (s *Schema) Validate(doc []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
	}
	if res.Valid() {
		return nil
	}
	first := res.Errors()[0]
	field := schemaField(first)
	msg := first.Description()
	if field != "" && !strings.HasPrefix(msg, field) {
		msg = field + ": " + msg
	}
	return types.NewValidationError(field, msg)
}

// schemaField 取出错的顶层字段；required 错误的上下文是 (root)，字段名在 details 里
func schemaField(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			return p
		}
	}
	field := e.Field()
	if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return ""
	}
	if i := strings.IndexByte(field, '.'); i > 0 {
		field = field[:i]
	}
	return field
}

// =============================================================================
// 📋 请求体 schema
// =============================================================================

// GenerateSchema /generate 请求体
var GenerateSchema = MustCompileSchema("generate", `{
  "type": "object",
  "required": ["repository_url", "project_id"],
  "properties": {
    "repository_url": {"type": "string", "minLength": 1, "maxLength": 2048},
    "project_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "output_formats": {
      "type": "array",
      "items": {"type": "string", "enum": ["markdown", "html", "json"]},
      "uniqueItems": true
    },
    "include_diagrams": {"type": "boolean"},
    "target_audience": {
      "type": "string",
      "enum": ["developers", "beginners", "technical_writers", "architects", "end_users"]
    },
    "translation_languages": {
      "type": "array",
      "items": {"type": "string", "minLength": 2, "maxLength": 32},
      "maxItems": 10
    },
    "github_token": {"type": "string", "maxLength": 512},
    "github_username": {"type": "string", "maxLength": 64}
  }
}`)

// StopSchema /stop-workflow 请求体
var StopSchema = MustCompileSchema("stop", `{
  "type": "object",
  "required": ["workflow_id"],
  "properties": {
    "workflow_id": {"type": "string", "minLength": 1}
  }
}`)

// FeedbackSchema /feedback 请求体；分数范围由领域校验给出字段级错误
var FeedbackSchema = MustCompileSchema("feedback", `{
  "type": "object",
  "required": ["workflow_id", "rating", "usefulness_score", "accuracy_score", "completeness_score"],
  "properties": {
    "workflow_id": {"type": "string", "minLength": 1},
    "user_id": {"type": "string", "maxLength": 128},
    "rating": {"type": "integer"},
    "usefulness_score": {"type": "integer"},
    "accuracy_score": {"type": "integer"},
    "completeness_score": {"type": "integer"},
    "comments": {"type": "string", "maxLength": 4000}
  }
}`)

// TokenSchema /auth/github/token 请求体
var TokenSchema = MustCompileSchema("github_token", `{
  "type": "object",
  "required": ["code"],
  "properties": {
    "code": {"type": "string", "minLength": 1},
    "state": {"type": "string"}
  }
}`)
