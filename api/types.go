// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// 📦 请求类型
// =============================================================================

// GenerateRequest 图像生成请求体。
type GenerateRequest struct {
	Prompt  string  `json:"prompt"`
	Model   string  `json:"model"`
	Size    string  `json:"size"`
	N       FlexInt `json:"n"`
	Quality string  `json:"quality"`
}

// FlexInt 接受 JSON 数字或数字字符串两种写法的整数。
// 浏览器表单序列化常把 n 发成 "2" 而不是 2，两者等价。
type FlexInt int

// UnmarshalJSON 实现宽松解码：数字、带引号的数字均可。
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)

	// 先按整数解析，失败再尝试 JSON 数字（如 2.0）
	if v, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return fmt.Errorf("invalid integer value: %s", string(data))
	}
	if n != float64(int(n)) {
		return fmt.Errorf("value is not an integer: %s", string(data))
	}
	*f = FlexInt(int(n))
	return nil
}

// Int 返回底层整数值。
func (f FlexInt) Int() int { return int(f) }

// =============================================================================
// 📦 响应类型
// =============================================================================

// ImageURL 单张已持久化图像的公开地址。
type ImageURL struct {
	URL string `json:"url"`
}

// Usage 上游用量统计，原样透传。
type Usage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ImagesResponse 生成 / 编辑操作的成功响应。
type ImagesResponse struct {
	Data  []ImageURL `json:"data"`
	Usage Usage      `json:"usage"`
}

// ErrorResponse 统一错误响应。details 仅在上游提供了
// 结构化错误体时出现。
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// =============================================================================
// 🎯 参数取值域
// =============================================================================

// 允许的图像尺寸
var ValidSizes = map[string]bool{
	"1024x1024": true,
	"1024x1536": true,
	"1536x1024": true,
}

// 允许的质量档位
var ValidQualities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// 单次请求允许的图像数量范围
const (
	MinImageCount = 1
	MaxImageCount = 4
)
