// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/normalize"
	"github.com/BaSui01/imageflow/types"
	"github.com/BaSui01/imageflow/upstream"
	"go.uber.org/zap"
)

// =============================================================================
// 🖼️ 图像接口 Handler
// =============================================================================

// 落盘文件名前缀，生成与编辑各占一个命名空间
const (
	generatePrefix = "generate"
	editPrefix     = "edit_bulk"
)

// 编辑表单解析时驻留内存的上限
const editFormMaxMemory = 32 << 20

// ImagesHandler 图像生成 / 编辑处理器
type ImagesHandler struct {
	service    upstream.Service
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewImagesHandler 创建图像处理器
func NewImagesHandler(service upstream.Service, normalizer *normalize.Normalizer, logger *zap.Logger) *ImagesHandler {
	return &ImagesHandler{
		service:    service,
		normalizer: normalizer,
		logger:     logger,
	}
}

// HandleGenerate 处理图像生成请求
// @Summary 图像生成
// @Description 按提示词生成图像并持久化到本地
// @Tags 图像
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {object} api.ImagesResponse "生成结果"
// @Failure 400 {object} api.ErrorResponse "无效请求"
// @Router /api/generate [post]
func (h *ImagesHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	genReq, appErr := h.buildGenerateRequest(&req)
	if appErr != nil {
		WriteError(w, appErr, h.logger)
		return
	}

	start := time.Now()
	resp, err := h.service.Generate(r.Context(), genReq)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	urls, err := h.normalizer.Normalize(r.Context(), resp.Data, generatePrefix)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("image generation",
		zap.String("model", genReq.Model),
		zap.Int("count", len(urls)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	WriteJSON(w, http.StatusOK, buildImagesResponse(urls, resp.Usage))
}

// HandleEdit 处理图像编辑请求
// @Summary 图像编辑
// @Description 基于上传图像与提示词生成编辑结果
// @Tags 图像
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} api.ImagesResponse "编辑结果"
// @Failure 400 {object} api.ErrorResponse "无效请求"
// @Router /api/edit [post]
func (h *ImagesHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(editFormMaxMemory); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid multipart form").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, h.logger)
		return
	}
	defer r.MultipartForm.RemoveAll()

	images, appErr := h.collectImages(r.MultipartForm)
	if appErr != nil {
		WriteError(w, appErr, h.logger)
		return
	}

	mask, appErr := h.collectMask(r.MultipartForm)
	if appErr != nil {
		WriteError(w, appErr, h.logger)
		return
	}

	req := api.GenerateRequest{
		Prompt:  r.FormValue("prompt"),
		Model:   r.FormValue("model"),
		Size:    r.FormValue("size"),
		Quality: r.FormValue("quality"),
	}
	if raw := r.FormValue("n"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "n must be an integer", h.logger)
			return
		}
		req.N = api.FlexInt(n)
	}

	genReq, appErr := h.buildGenerateRequest(&req)
	if appErr != nil {
		WriteError(w, appErr, h.logger)
		return
	}

	editReq := &upstream.EditRequest{
		Prompt:  genReq.Prompt,
		Model:   genReq.Model,
		Size:    genReq.Size,
		N:       genReq.N,
		Quality: genReq.Quality,
		Images:  images,
		Mask:    mask,
	}

	start := time.Now()
	resp, err := h.service.Edit(r.Context(), editReq)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	urls, err := h.normalizer.Normalize(r.Context(), resp.Data, editPrefix)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("image edit",
		zap.String("model", genReq.Model),
		zap.Int("input_images", len(images)),
		zap.Int("count", len(urls)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	WriteJSON(w, http.StatusOK, buildImagesResponse(urls, resp.Usage))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// buildGenerateRequest 校验请求并补齐默认值。
func (h *ImagesHandler) buildGenerateRequest(req *api.GenerateRequest) (*upstream.GenerateRequest, *types.Error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required")
	}

	model := req.Model
	if model == "" {
		model = "gpt-image-1"
	}

	n := req.N.Int()
	if n == 0 {
		n = 1
	}
	if n < api.MinImageCount || n > api.MaxImageCount {
		return nil, types.NewError(types.ErrInvalidRequest, "n must be between 1 and 4")
	}

	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	if !api.ValidSizes[size] {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid size")
	}

	quality := req.Quality
	if quality == "" {
		quality = "medium"
	}
	if !api.ValidQualities[quality] {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid quality")
	}

	return &upstream.GenerateRequest{
		Prompt:  req.Prompt,
		Model:   model,
		Size:    size,
		N:       n,
		Quality: quality,
	}, nil
}

// collectImages 读取 image[] 文件字段（兼容单数 image），保持上传顺序。
func (h *ImagesHandler) collectImages(form *multipart.Form) ([]upstream.ImageBlob, *types.Error) {
	files := form.File["image[]"]
	if len(files) == 0 {
		files = form.File["image"]
	}
	if len(files) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "No images provided")
	}

	blobs := make([]upstream.ImageBlob, 0, len(files))
	for _, fh := range files {
		blob, err := readFileHeader(fh)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// collectMask 读取可选的 mask 文件字段。
func (h *ImagesHandler) collectMask(form *multipart.Form) (*upstream.ImageBlob, *types.Error) {
	files := form.File["mask"]
	if len(files) == 0 {
		return nil, nil
	}
	blob, err := readFileHeader(files[0])
	if err != nil {
		return nil, err
	}
	return &blob, nil
}

func readFileHeader(fh *multipart.FileHeader) (upstream.ImageBlob, *types.Error) {
	f, err := fh.Open()
	if err != nil {
		return upstream.ImageBlob{}, types.NewError(types.ErrInvalidRequest, "failed to open uploaded file").WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upstream.ImageBlob{}, types.NewError(types.ErrInvalidRequest, "failed to read uploaded file").WithCause(err)
	}

	return upstream.ImageBlob{
		Data:     data,
		MIME:     fh.Header.Get("Content-Type"),
		Filename: fh.Filename,
	}, nil
}

func buildImagesResponse(urls []string, usage upstream.Usage) api.ImagesResponse {
	data := make([]api.ImageURL, len(urls))
	for i, url := range urls {
		data[i] = api.ImageURL{URL: url}
	}
	return api.ImagesResponse{
		Data: data,
		Usage: api.Usage{
			TotalTokens:  usage.TotalTokens,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		},
	}
}
