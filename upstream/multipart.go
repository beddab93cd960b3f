package upstream

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/BaSui01/imageflow/types"
)

// 上游编辑接口的字段布局：图像使用数组式字段名，蒙版独立命名。
const (
	imageFieldName = "image[]"
	maskFieldName  = "mask"
)

// BuildEditForm 将编辑请求装配为 multipart 请求体。
//
// 字段顺序确定：图像按输入顺序在前，其后是蒙版（如有），最后是固定
// 顺序的文本字段 prompt、model、size、n、quality。顺序对上游语义无关，
// 但保持确定以便测试。除要求至少一张图像外不做领域校验，count/size/
// quality 的取值校验属于 HTTP 层。
func BuildEditForm(req *EditRequest) (*bytes.Buffer, string, error) {
	if len(req.Images) == 0 {
		return nil, "", types.NewError(types.ErrInvalidRequest, "at least one image is required").
			WithHTTPStatus(http.StatusBadRequest)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for i, img := range req.Images {
		filename := img.Filename
		if filename == "" {
			filename = fmt.Sprintf("image_%d.png", i)
		}
		part, err := createFilePart(writer, imageFieldName, filename, img.MIME)
		if err != nil {
			return nil, "", types.NewError(types.ErrInternalError, "failed to create image form part").WithCause(err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", types.NewError(types.ErrInternalError, "failed to write image form part").WithCause(err)
		}
	}

	if req.Mask != nil {
		filename := req.Mask.Filename
		if filename == "" {
			filename = "mask.png"
		}
		part, err := createFilePart(writer, maskFieldName, filename, req.Mask.MIME)
		if err != nil {
			return nil, "", types.NewError(types.ErrInternalError, "failed to create mask form part").WithCause(err)
		}
		if _, err := part.Write(req.Mask.Data); err != nil {
			return nil, "", types.NewError(types.ErrInternalError, "failed to write mask form part").WithCause(err)
		}
	}

	_ = writer.WriteField("prompt", req.Prompt)
	_ = writer.WriteField("model", req.Model)
	_ = writer.WriteField("size", req.Size)
	_ = writer.WriteField("n", strconv.Itoa(req.N))
	_ = writer.WriteField("quality", req.Quality)

	if err := writer.Close(); err != nil {
		return nil, "", types.NewError(types.ErrInternalError, "failed to finalize form body").WithCause(err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// createFilePart 创建携带声明 MIME 类型的文件字段。
// multipart.Writer.CreateFormFile 固定 application/octet-stream，
// 这里透传浏览器声明的 Content-Type。
func createFilePart(writer *multipart.Writer, field, filename, mime string) (io.Writer, error) {
	if mime == "" {
		mime = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(field), escapeQuotes(filename)))
	h.Set("Content-Type", mime)
	return writer.CreatePart(h)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
