// Copyright (c) DocFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库连接打开与连接池管理。

# 概述

Open 根据 config.DatabaseConfig 选择方言（postgres、mysql、纯 Go 的
glebarez/sqlite），打开 GORM 连接后交给 PoolManager 管理。PoolManager
统一配置连接池参数，后台定时探活，并提供事务与事务重试。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，可由 PoolConfigFrom 从数据库配置派生。
  - PoolStats：友好格式的连接池统计信息。
  - TransactionFunc：事务回调函数类型。

产物与反馈的持久化（storage 包）以及 migrate 子命令都经由本包获取连接。
*/
package database
