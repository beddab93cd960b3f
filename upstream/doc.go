// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package upstream 实现对上游图像 API 的客户端调用与编辑请求装配。

# 概述

上游被视为黑盒：Client 负责生成（JSON POST）、编辑（multipart POST）
与托管图像下载三类出站调用。非 2xx 响应一律转为 types.Error，状态码
与原始响应体（Details）端到端传播；任何调用均为单次尝试，不重试。

# 核心类型

  - Client        — 上游客户端，生成/编辑与下载各持一个超时档的 http.Client
  - GenerateRequest / EditRequest / Response — 上游契约的请求与响应形态
  - ImageItem     — 托管（url）/内联（b64_json）联合条目
  - Service / Fetcher — 供 HTTP 层与归一化层消费的最小接口

# 编辑请求装配

BuildEditForm 以确定顺序写出 multipart 字段：image[] 文件部件按输入
顺序、mask 部件（如有）、随后是 prompt/model/size/n/quality 文本字段。
*/
package upstream
