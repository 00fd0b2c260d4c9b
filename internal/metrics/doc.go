// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、工作流、
阶段、内容生成、仓库拉取、缓存与数据库连接。

# 核心类型

  - Collector：指标收集器。实现 workflow.MetricsRecorder，
    直接交给编排器使用。每个 Collector 注册到调用方提供的
    prometheus.Registerer，测试可使用独立的 Registry。
  - InstrumentProvider / InstrumentFetcher / InstrumentCache：
    为内容生成服务、仓库拉取器与快照缓存叠加指标记录的装饰器。

# 标签

HTTP 状态码归类为 2xx/3xx/4xx/5xx；路径使用路由模板而非原始 URL，
避免工作流 ID 造成标签基数膨胀。
*/
package metrics
