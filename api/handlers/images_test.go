package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/normalize"
	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"github.com/BaSui01/imageflow/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockService 记录收到的请求并返回预置响应。
type mockService struct {
	generateReq  *upstream.GenerateRequest
	editReq      *upstream.EditRequest
	resp         *upstream.Response
	err          error
	fetchPayload []byte
}

func (m *mockService) Generate(ctx context.Context, req *upstream.GenerateRequest) (*upstream.Response, error) {
	m.generateReq = req
	return m.resp, m.err
}

func (m *mockService) Edit(ctx context.Context, req *upstream.EditRequest) (*upstream.Response, error) {
	m.editReq = req
	return m.resp, m.err
}

func (m *mockService) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return m.fetchPayload, nil
}

func newTestHandler(t *testing.T, svc *mockService) (*ImagesHandler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), "/img", zap.NewNop())
	require.NoError(t, err)
	n := normalize.New(svc, st, zap.NewNop(), nil)
	return NewImagesHandler(svc, n, zap.NewNop()), st
}

func inlineItem(payload string) upstream.ImageItem {
	return upstream.ImageItem{B64JSON: base64.StdEncoding.EncodeToString([]byte(payload))}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleGenerate_Success(t *testing.T) {
	svc := &mockService{resp: &upstream.Response{
		Data:  []upstream.ImageItem{inlineItem("one"), inlineItem("two")},
		Usage: upstream.Usage{TotalTokens: 42, InputTokens: 10, OutputTokens: 32},
	}}
	h, st := newTestHandler(t, svc)

	rec := postJSON(t, h.HandleGenerate, `{"prompt":"a cat","model":"gpt-image-1","size":"1024x1024","n":2,"quality":"high"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ImagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 42, resp.Usage.TotalTokens)

	// 每个 URL 都指向已落盘的文件
	for _, item := range resp.Data {
		require.True(t, strings.HasPrefix(item.URL, "/img/generate_"))
		_, err := os.Stat(filepath.Join(st.Dir(), filepath.Base(item.URL)))
		require.NoError(t, err)
	}

	assert.Equal(t, "a cat", svc.generateReq.Prompt)
	assert.Equal(t, 2, svc.generateReq.N)
}

func TestHandleGenerate_NAsString(t *testing.T) {
	svc := &mockService{resp: &upstream.Response{Data: []upstream.ImageItem{inlineItem("x")}}}
	h, _ := newTestHandler(t, svc)

	rec := postJSON(t, h.HandleGenerate, `{"prompt":"p","n":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.generateReq.N)
}

func TestHandleGenerate_Defaults(t *testing.T) {
	svc := &mockService{resp: &upstream.Response{Data: []upstream.ImageItem{inlineItem("x")}}}
	h, _ := newTestHandler(t, svc)

	rec := postJSON(t, h.HandleGenerate, `{"prompt":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "gpt-image-1", svc.generateReq.Model)
	assert.Equal(t, 1, svc.generateReq.N)
	assert.Equal(t, "1024x1024", svc.generateReq.Size)
	assert.Equal(t, "medium", svc.generateReq.Quality)
}

func TestHandleGenerate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing prompt", `{"model":"m"}`, "prompt is required"},
		{"blank prompt", `{"prompt":"   "}`, "prompt is required"},
		{"n too large", `{"prompt":"p","n":5}`, "n must be between 1 and 4"},
		{"n negative", `{"prompt":"p","n":-1}`, "n must be between 1 and 4"},
		{"bad size", `{"prompt":"p","size":"512x512"}`, "invalid size"},
		{"bad quality", `{"prompt":"p","quality":"ultra"}`, "invalid quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &mockService{})
			rec := postJSON(t, h.HandleGenerate, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestHandleGenerate_UpstreamRateLimited(t *testing.T) {
	details := `{"error":{"message":"rate limited"}}`
	svc := &mockService{err: types.NewError(types.ErrRateLimited, "upstream generate request failed with status 429").
		WithHTTPStatus(http.StatusTooManyRequests).
		WithDetails([]byte(details))}
	h, _ := newTestHandler(t, svc)

	rec := postJSON(t, h.HandleGenerate, `{"prompt":"p"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "429")
	assert.JSONEq(t, details, string(resp.Details))
}

func buildEditBody(t *testing.T, images map[string][]byte, fields map[string]string, withMask bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, data := range images {
		part, err := w.CreateFormFile("image[]", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if withMask {
		part, err := w.CreateFormFile("mask", "mask.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("mask-bytes"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandleEdit_Success(t *testing.T) {
	svc := &mockService{resp: &upstream.Response{
		Data:  []upstream.ImageItem{inlineItem("edited")},
		Usage: upstream.Usage{TotalTokens: 7},
	}}
	h, _ := newTestHandler(t, svc)

	body, contentType := buildEditBody(t,
		map[string][]byte{"src.png": []byte("src-bytes")},
		map[string]string{"prompt": "add a hat", "model": "gpt-image-1", "size": "1024x1024", "n": "1", "quality": "low"},
		true)

	req := httptest.NewRequest(http.MethodPost, "/api/edit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleEdit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ImagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, strings.HasPrefix(resp.Data[0].URL, "/img/edit_bulk_"))

	require.NotNil(t, svc.editReq)
	require.Len(t, svc.editReq.Images, 1)
	assert.Equal(t, []byte("src-bytes"), svc.editReq.Images[0].Data)
	assert.Equal(t, "src.png", svc.editReq.Images[0].Filename)
	require.NotNil(t, svc.editReq.Mask)
	assert.Equal(t, []byte("mask-bytes"), svc.editReq.Mask.Data)
	assert.Equal(t, "add a hat", svc.editReq.Prompt)
	assert.Equal(t, "low", svc.editReq.Quality)
}

func TestHandleEdit_NoImages(t *testing.T) {
	h, _ := newTestHandler(t, &mockService{})

	body, contentType := buildEditBody(t, nil, map[string]string{"prompt": "p"}, false)
	req := httptest.NewRequest(http.MethodPost, "/api/edit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleEdit(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No images provided", resp.Error)
}

func TestHandleEdit_SingularImageField(t *testing.T) {
	svc := &mockService{resp: &upstream.Response{Data: []upstream.ImageItem{inlineItem("x")}}}
	h, _ := newTestHandler(t, svc)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "a.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("prompt", "p"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/edit", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleEdit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.editReq.Images, 1)
}
