// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ImageFlow 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 upstream、normalize、
api 等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与可选的
    Details 负载（上游原始错误体，逐层显式传递到 HTTP 响应）

# 主要能力

  - 错误工具链：NewError / WithCause / WithHTTPStatus / WithDetails
  - 错误提取：AsError / GetErrorCode
*/
package types
