package upstream

import (
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parsedPart 记录解析出的单个 multipart 部件，保持出现顺序。
type parsedPart struct {
	field    string
	filename string
	mime     string
	body     []byte
}

func parseForm(t *testing.T, body io.Reader, contentType string) []parsedPart {
	t.Helper()

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(body, params["boundary"])
	var parts []parsedPart
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, parsedPart{
			field:    p.FormName(),
			filename: p.FileName(),
			mime:     p.Header.Get("Content-Type"),
			body:     data,
		})
	}
	return parts
}

func TestBuildEditForm_FieldLayout(t *testing.T) {
	req := &EditRequest{
		Prompt:  "add a hat",
		Model:   "gpt-image-1",
		Size:    "1024x1024",
		N:       3,
		Quality: "high",
		Images: []ImageBlob{
			{Data: []byte("img-a"), MIME: "image/png", Filename: "a.png"},
			{Data: []byte("img-b"), MIME: "image/jpeg", Filename: "b.jpg"},
		},
		Mask: &ImageBlob{Data: []byte("mask-bytes"), MIME: "image/png", Filename: "m.png"},
	}

	body, contentType, err := BuildEditForm(req)
	require.NoError(t, err)

	parts := parseForm(t, body, contentType)
	require.Len(t, parts, 8)

	// 图像在前，按输入顺序
	assert.Equal(t, "image[]", parts[0].field)
	assert.Equal(t, "a.png", parts[0].filename)
	assert.Equal(t, "image/png", parts[0].mime)
	assert.Equal(t, []byte("img-a"), parts[0].body)

	assert.Equal(t, "image[]", parts[1].field)
	assert.Equal(t, "b.jpg", parts[1].filename)
	assert.Equal(t, "image/jpeg", parts[1].mime)
	assert.Equal(t, []byte("img-b"), parts[1].body)

	// 其后是蒙版
	assert.Equal(t, "mask", parts[2].field)
	assert.Equal(t, "m.png", parts[2].filename)
	assert.Equal(t, []byte("mask-bytes"), parts[2].body)

	// 最后是固定顺序的文本字段，n 为十进制字符串
	wantScalars := []struct{ field, value string }{
		{"prompt", "add a hat"},
		{"model", "gpt-image-1"},
		{"size", "1024x1024"},
		{"n", "3"},
		{"quality", "high"},
	}
	for i, want := range wantScalars {
		got := parts[3+i]
		assert.Equal(t, want.field, got.field)
		assert.Equal(t, want.value, string(got.body))
		assert.Empty(t, got.filename)
	}
}

func TestBuildEditForm_NoMask(t *testing.T) {
	req := &EditRequest{
		Prompt: "p",
		Model:  "m",
		Size:   "1024x1024",
		N:      1,
		Images: []ImageBlob{{Data: []byte("x"), MIME: "image/png", Filename: "x.png"}},
	}

	body, contentType, err := BuildEditForm(req)
	require.NoError(t, err)

	parts := parseForm(t, body, contentType)
	for _, p := range parts {
		assert.NotEqual(t, "mask", p.field)
	}
}

func TestBuildEditForm_PlaceholderFilenames(t *testing.T) {
	req := &EditRequest{
		Prompt: "p",
		Model:  "m",
		N:      1,
		Images: []ImageBlob{
			{Data: []byte("x")},
			{Data: []byte("y"), Filename: "named.png"},
			{Data: []byte("z")},
		},
	}

	body, contentType, err := BuildEditForm(req)
	require.NoError(t, err)

	parts := parseForm(t, body, contentType)
	assert.Equal(t, "image_0.png", parts[0].filename)
	assert.Equal(t, "named.png", parts[1].filename)
	assert.Equal(t, "image_2.png", parts[2].filename)

	// MIME 缺省为 application/octet-stream
	assert.Equal(t, "application/octet-stream", parts[0].mime)
}

func TestBuildEditForm_RequiresImage(t *testing.T) {
	_, _, err := BuildEditForm(&EditRequest{Prompt: "p", Model: "m", N: 1})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}
