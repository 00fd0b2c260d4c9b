// Package repo 解析仓库地址并拉取源码快照。
//
// Fetcher 有三种实现：GitHubFetcher 通过 REST API 并发拉取文件，
// SampleFetcher 返回内置的离线示例仓库，CachedFetcher 在前两者之上
// 叠加 Redis 缓存与 singleflight 去重。OAuth 负责 GitHub 授权码换取令牌。
package repo
