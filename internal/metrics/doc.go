// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
上游图像 API 与图像存储三大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 上游指标：生成/编辑调用总数、调用耗时（分钟级桶）、
    Token 用量（input/output），按 operation 分组。
  - 存储指标：落盘图像张数与累计字节数，按 operation 分组。
*/
package metrics
