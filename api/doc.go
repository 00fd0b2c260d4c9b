// Package api 定义 DocFlow HTTP API 的请求与响应结构。
//
// 所有 JSON 响应都包在统一信封里：
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "req-..."}
//	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "...", "field": "project_id"}}
//
// 处理器实现见 api/handlers，路由与中间件在 cmd/docflow 中装配。
package api
