// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 实现 DocFlow 轮询式 HTTP API 的请求处理器。

# 核心类型

  - WorkflowHandler：/generate、/status/{id}、/stop-workflow、/feedback、
    /workflows、/download/{id}
  - AgentsHandler：/agents/status 阶段能力目录
  - AuthHandler：/auth/github/config 与 /auth/github/token
  - HealthHandler：/health、/healthz、/ready、/version
  - Response / ErrorInfo：统一响应信封
  - Schema：基于 gojsonschema 的请求体预校验

请求体先经 JSON Schema 校验，再由 workflow 包做领域校验；两者的失败都以
VALIDATION_ERROR 返回并给出出错字段。流水线内部错误不会以 HTTP 错误抛出，
而是记录在工作流状态里，由 /status 以 200 返回。
*/
package handlers
