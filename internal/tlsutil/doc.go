// Package tlsutil 提供集中式 TLS 配置，
// 供 GitHub/LLM 客户端与 API 服务器共用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
