/*
Package stages 实现文档生成流水线的各个阶段（workflow.AgentAdapter）。

# 阶段

  - CodeAnalyzer：通过 repo.Fetcher 拉取仓库快照，用正则解析函数、类、依赖与 HTTP 路由
  - DocWriter：按目标读者组织提示词，调用 llm.ContentProvider 生成 Markdown 文档
  - DiagramGenerator：根据分析结果生成 Mermaid 图
  - TranslationAgent：逐语言翻译文档，每种语言之间检查取消
  - QualityReviewer：启发式打分并给出改进建议
  - FeedbackCollector：规范化用户反馈并维护滚动平均评分

每个阶段只写 workflow.Context 中属于自己的字段，并通过 ProgressFunc 汇报进度。
Catalog 描述各阶段能力，供 GET /agents/status 使用。
*/
package stages
