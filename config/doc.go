// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package config 提供 ImageFlow 的统一配置加载。

# 概述

配置在进程启动时构造一次，之后以显式引用注入到 HTTP 层与上游客户端，
不存在运行期的环境读取。加载优先级：默认值 → YAML 文件 → 环境变量
（前缀 IMAGEFLOW，嵌套字段以下划线连接，如 IMAGEFLOW_UPSTREAM_API_KEY）。

# 核心类型

  - Config          — 完整配置（Server / Upstream / Store / Log）
  - Loader          — Builder 风格加载器（WithConfigPath / WithEnvPrefix）
  - UpstreamConfig  — 上游端点、凭证与两档超时（生成分钟级、下载秒级）

# 启动校验

Config.Validate 在上游端点或 API 凭证缺失时返回错误，进程拒绝启动。
*/
package config
