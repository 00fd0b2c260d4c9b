// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供文档生成工作流的编排引擎。

# 概述

一个 Workflow 代表一次仓库文档生成运行。Manager 负责创建、查询、停止与反馈，
Orchestrator 为每个工作流启动独立 goroutine，按固定顺序驱动各阶段
（AgentAdapter），并在每次状态变化时把完整快照写入 StatusStore。
状态读取只访问 StatusStore，不会等待编排器。

# 核心类型

  - Workflow / AgentState：工作流与阶段状态快照
  - Context：在阶段之间传递的数据容器
  - AgentAdapter：阶段能力接口 Run(ctx, wctx, report)
  - StatusStore：快照存储接口（MemoryStore 为默认实现）
  - Orchestrator：状态机：initiated → processing → completed/failed/cancelled
  - ResultAssembler：合并阶段输出、计算总分、渲染输出格式
  - Manager：对外门面

# 阶段顺序

	code_analyzer → doc_writer → diagram_generator → translation_agent → quality_reviewer

diagram_generator 仅在 include_diagrams 时执行，translation_agent 仅在
translation_languages 非空时执行。被跳过的阶段不计入进度分母。
feedback_collector 不在流水线中，只通过 Manager.SubmitFeedback 调用。
*/
package workflow
