// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 DocFlow 的工作流编排与 HTTP API 提供 TracerProvider 和 MeterProvider。
// 禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
