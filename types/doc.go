// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 docflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、stages、llm、
api 等上层模块提供统一的错误与上下文契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Field、Stage 标记
  - ValidationError：NewValidationError，携带出错字段名
  - NotFoundError：NewNotFoundError
  - AgentExecution：NewAgentExecutionError，携带阶段名和原因
  - Timeout：NewTimeoutError，阶段或整个工作流超时
  - Cancellation：NewCancellationError，仅内部使用，对外表现为 cancelled 状态

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithUserID / WithWorkflowID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
