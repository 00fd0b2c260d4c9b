// Package config 提供 DocFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，
// 环境变量使用 DOCFLOW_ 前缀并按结构体 env tag 拼接。
package config
