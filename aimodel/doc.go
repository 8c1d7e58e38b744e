// Package aimodel 是 creativeflow 的多供应商 AI 生成核心：
// 在一个统一的 Client 接口下归一化各供应商的认证、请求形状与响应
// 解析，把一次性与流式生成统一到同一套结果/块契约上，并把用量计量
// 与审计日志作为每次调用的副作用持久化。
//
// 组件分层（自下而上）：
//
//   - providers/*：每个供应商变体一个子包，真实流（SSE）与模拟流
//     对外暴露完全一致的序列形状
//   - ConfigStore：配置档案与审计日志的持久化，默认标志与计数器
//     的不变式靠事务保证
//   - Registry：配置标识 → 存活客户端的解析
//   - UsageRecorder：每次调用恰好一条审计日志，成功时原子推进计数器
//   - Manager：对外入口，编排以上各层
//
// 失败在本包边界上永远是可表示的值（失败结果或错误块），
// 不以 panic 或 error 形式穿出公开操作。
package aimodel
