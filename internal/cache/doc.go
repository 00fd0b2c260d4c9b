// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，供仓库快照缓存与
Redis 状态存储共享同一个连接池。

# 核心类型

  - Manager：持有 go-redis 客户端，提供 Get/Set/Delete/Exists/Expire
    以及 GetJSON/SetJSON（goccy/go-json 序列化）。
  - Config：地址、密码、连接池、默认 TTL、健康检查间隔。
  - Stats：从 INFO 输出解析的命中率、键数量、内存与连接数。

# 主要能力

  - 健康检查：后台定时 Ping，异常时通过 zap 日志告警，Close 时退出。
  - 错误语义：ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
