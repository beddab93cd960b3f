// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

// Package handlers 实现 HTTP 接口层。
//
// 包含:
//   - ImagesHandler: /api/generate 与 /api/edit 的核心处理器
//   - HealthHandler: 健康 / 就绪 / 版本端点
//   - 统一的 JSON 响应与错误写出辅助
//
// 校验策略：prompt 必填；n 限定 1..4（缺省 1）；size 与 quality
// 限定在各自取值域内（缺省 1024x1024 / medium）。编辑请求至少
// 需要一张上传图像，否则返回 400。
package handlers
