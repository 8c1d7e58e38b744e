// Package handlers 提供 HTTP API 处理器。
//
// 所有响应采用统一的 Response 包装；流式生成端点使用 SSE 传输，
// 以 "[DONE]" 标记收尾。
package handlers
