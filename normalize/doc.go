// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

// Package normalize 负责把上游响应里的图像条目（托管 URL 或内联
// base64）统一转成本地可服务的 URL。
//
// 核心保证:
//   - 输出切片与输入条目等长且顺序一一对应，与各条目完成先后无关
//   - 所有条目并发处理，任一失败则整体失败（全有或全无）
//   - 每次调用使用同一个 uid，文件名为 <prefix>_<uid>_<下标>.png
package normalize
