// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 DocFlow 服务端程序入口。

# 概述

cmd/docflow 基于 cobra 提供 serve、migrate、health、version 子命令。
serve 按配置装配 Redis 缓存、工作流状态存储、产物存储、阶段流水线与
工作流管理器，并在独立端口暴露 Prometheus 指标。

# 中间件链

Recovery → RequestID → SecurityHeaders → Metrics → RequestLogger →
OTelTracing → CORS → RateLimiter → APIKeyAuth → JWTAuth

API Key 与 JWT 未配置时直接放行；健康检查与 OAuth 路由始终公开。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
