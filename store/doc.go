// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package store 提供本地图像存储：单层平铺目录，按文件名精确读取。

# 概述

所有持久化图像写入同一目录，文件名为 <prefix>_<uid>_<idx>.png，其中
uid 为请求级随机唯一标识（UUID），idx 为该响应内条目的零基序号。
uid 取代了早期实现的墙钟时间戳：并发请求之间的唯一性由随机标识保证，
不再依赖时钟分辨率。

# 行为约定

  - 仅追加：Save 使用 O_EXCL，目标已存在即报错，永不覆盖
  - 无保留策略：文件无限累积，不做清理（既定行为）
  - 无元数据：目录中只有图像文件本身，没有 sidecar
*/
package store
