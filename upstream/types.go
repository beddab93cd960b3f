package upstream

import "context"

// GenerateRequest 是转发给上游生成端点的 JSON 请求体。
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Size    string `json:"size,omitempty"`
	N       int    `json:"n,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// ImageBlob 是一次请求生命周期内的瞬态图像数据：
// 原始字节 + 声明的 MIME 类型 + 可选的来源文件名。
type ImageBlob struct {
	Data     []byte
	MIME     string
	Filename string
}

// EditRequest 是图像编辑请求：生成参数 + 有序图像序列（≥1）+ 可选蒙版。
// 在单个请求生命周期内构造并消费，不跨请求共享。
type EditRequest struct {
	Prompt  string
	Model   string
	Size    string
	N       int
	Quality string
	Images  []ImageBlob
	Mask    *ImageBlob
}

// ImageItem 是上游响应中的单个条目，托管（url）与内联（b64_json）
// 二选一。
type ImageItem struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Hosted 报告条目是否为托管变体。
func (it ImageItem) Hosted() bool { return it.URL != "" }

// Usage 是上游返回的用量元数据，原样透传给调用方，不做持久化。
type Usage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response 是上游生成/编辑接口的响应体。
type Response struct {
	Created int64       `json:"created"`
	Data    []ImageItem `json:"data"`
	Usage   Usage       `json:"usage"`
}

// Service 是 HTTP 层消费的上游操作接口。
type Service interface {
	Generate(ctx context.Context, req *GenerateRequest) (*Response, error)
	Edit(ctx context.Context, req *EditRequest) (*Response, error)
}

// Fetcher 下载托管图像字节，由响应归一化层消费。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}
