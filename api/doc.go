// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

// Package api 定义 HTTP 接口层的请求与响应类型。
//
// 成功响应形如 {"data":[{"url":...}],"usage":{...}}，
// 错误响应形如 {"error":"...","details":...}，details 携带
// 上游返回的原始错误体（若有）。
//
// FlexInt 兼容 JSON 数字与数字字符串两种写法，用于 n 字段。
package api
