/*
包 migration 管理 docflow_artifacts 与 docflow_feedback 两张表的 Schema，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

各方言的 SQL 迁移文件内嵌于 migrations/ 目录。DefaultMigrator 提供
Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info；CLI 将结果格式化
输出，由 docflow migrate 子命令调用。SQLite 连接使用纯 Go 的 sqlite 驱动，
与 storage 包共用同一实现。
*/
package migration
