// Package openaicompat 是 OpenAI 兼容供应商的共享基座。
// OpenAI 与 DeepSeek 内嵌它，只覆盖各自不同的名称、地址与默认模型。
package openaicompat
