// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
包 server 管理 DocFlow API 与 metrics 端口的 HTTP/HTTPS 服务器生命周期。

# 核心类型

  - Manager：封装 net/http.Server，提供 Start/StartTLS/Run/Shutdown。
  - Config：监听地址、读写超时、关闭超时与 TLS 证书。
    FromServerConfig 与 MetricsConfig 从 config.ServerConfig 映射。

# 主要能力

  - Run 阻塞到 context 取消（通常来自 SIGINT/SIGTERM）或服务异常，
    然后在 ShutdownTimeout 内优雅关闭。
  - HTTPS 使用 tlsutil.DefaultTLSConfig（TLS 1.2+，仅 AEAD 套件），与出站客户端一致。
  - 启动后 Addr 返回实际绑定地址。
*/
package server
