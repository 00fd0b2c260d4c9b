// Package llm 提供文档流水线使用的内容生成接口。
//
// ContentProvider 有两种实现，在启动时选定一次：
//   - LiveProvider：调用 OpenAI 兼容的 chat completions 接口，
//     带速率限制、一次瞬时重试、熔断与提示词截断；
//   - FallbackProvider：离线演示模式，返回调用方给出的确定性模板内容。
package llm
