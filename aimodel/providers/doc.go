// Package providers 存放各供应商变体共享的 wire 层辅助：
// 错误信封解析、OpenAI 兼容类型、模型选择与模拟流。
package providers
