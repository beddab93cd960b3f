package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// API 版本与部署路径跟随上游图像 API 的当前契约。
const (
	generateAPIVersion = "2025-03-01-preview"
	editAPIVersion     = "2025-04-01-preview"
)

// Config 上游客户端配置
type Config struct {
	// 部署端点基础 URL
	Endpoint string
	// API 凭证，经 api-key 请求头发送
	APIKey string
	// 生成/编辑请求超时。图像合成较慢，取分钟级。
	RequestTimeout time.Duration
	// 托管图像下载超时
	DownloadTimeout time.Duration
}

// MetricsRecorder 接收上游调用的计数与耗时。
type MetricsRecorder interface {
	RecordUpstreamRequest(operation, status string, duration time.Duration, inputTokens, outputTokens int)
}

// Client 对上游图像 API 发起生成、编辑与托管图像下载调用。
// 所有调用均为单次尝试：超时与失败作为普通上游错误向上传播，不重试。
type Client struct {
	cfg      Config
	client   *http.Client // 生成/编辑：长超时
	download *http.Client // 托管下载：短超时
	logger   *zap.Logger
	metrics  MetricsRecorder
}

// NewClient 创建上游客户端。
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 200 * time.Second
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}

	return &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		download: &http.Client{Timeout: cfg.DownloadTimeout},
		logger:   logger.With(zap.String("component", "upstream_client")),
	}
}

// WithMetrics 设置指标记录器，返回客户端自身以便链式调用。
func (c *Client) WithMetrics(m MetricsRecorder) *Client {
	c.metrics = m
	return c
}

// deploymentURL 组合部署端点：{endpoint}/openai/deployments/{model}/images/{op}?api-version={v}
func (c *Client) deploymentURL(model, operation, apiVersion string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/images/%s?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"),
		url.PathEscape(model),
		operation,
		apiVersion,
	)
}

// Generate 向上游生成端点发起单次 JSON POST。
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode generation request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.deploymentURL(req.Model, "generations", generateAPIVersion),
		bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create generation request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.cfg.APIKey)

	return c.do(httpReq, "generate", req.Model)
}

// Edit 构建 multipart 请求体并向上游编辑端点发起单次 POST。
func (c *Client) Edit(ctx context.Context, req *EditRequest) (*Response, error) {
	body, contentType, err := BuildEditForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.deploymentURL(req.Model, "edits", editAPIVersion),
		body)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create edit request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("api-key", c.cfg.APIKey)

	return c.do(httpReq, "edit", req.Model)
}

// do 执行请求并解析响应，非 2xx 时将上游原始响应体作为 Details 传播。
func (c *Client) do(httpReq *http.Request, operation, model string) (*Response, error) {
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.record(operation, "error", time.Since(start), Usage{})
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("upstream %s request failed", operation)).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("upstream error",
			zap.String("operation", operation),
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", errBody),
		)
		c.record(operation, "error", time.Since(start), Usage{})
		return nil, mapError(resp.StatusCode, operation, errBody)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.record(operation, "error", time.Since(start), Usage{})
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("failed to decode upstream %s response", operation)).
			WithCause(err)
	}

	c.logger.Info("upstream response",
		zap.String("operation", operation),
		zap.String("model", model),
		zap.Int("images", len(out.Data)),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	c.record(operation, "success", time.Since(start), out.Usage)

	return &out, nil
}

func (c *Client) record(operation, status string, duration time.Duration, usage Usage) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(operation, status, duration, usage.InputTokens, usage.OutputTokens)
	}
}

// FetchBytes 下载托管图像。失败按上游错误传播，不重试。
func (c *Client) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create download request").WithCause(err)
	}

	resp, err := c.download.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "hosted image download failed").
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, mapError(resp.StatusCode, "download", errBody)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read hosted image body").
			WithCause(err)
	}

	return data, nil
}

// mapError 将上游状态码映射为结构化错误，原始响应体始终随 Details 携带。
func mapError(status int, operation string, body []byte) *types.Error {
	msg := fmt.Sprintf("upstream %s request failed with status %d", operation, status)

	var code types.ErrorCode
	switch status {
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(string(body)), "quota") {
			code = types.ErrQuotaExceeded
		} else {
			code = types.ErrInvalidRequest
		}
	default:
		code = types.ErrUpstreamError
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithDetails(body)
}
