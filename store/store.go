package store

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 🗂️ 本地图像存储
// =============================================================================

// Store 管理本地图像文件目录：仅追加写入，文件名在服务实例内唯一，
// 不存在覆盖；无保留/清理策略，文件随时间累积（既定行为）。
type Store struct {
	dir        string
	publicPath string
	logger     *zap.Logger
}

// New 创建图像存储，目录不存在时自动创建。
func New(dir, publicPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image store directory: %w", err)
	}

	return &Store{
		dir:        dir,
		publicPath: strings.TrimRight(publicPath, "/"),
		logger:     logger.With(zap.String("component", "image_store")),
	}, nil
}

// NewUID 返回请求级唯一标识。文件名使用 uid + 条目序号组合，
// 并发请求之间不会碰撞，无需锁。
func (s *Store) NewUID() string {
	return uuid.NewString()
}

// FileName 组合持久化文件名：<prefix>_<uid>_<idx>.png。
func FileName(prefix, uid string, idx int) string {
	return fmt.Sprintf("%s_%s_%d.png", prefix, uid, idx)
}

// Save 以仅追加语义写入图像并返回公共 URL。
// 目标文件已存在视为内部错误，绝不覆盖。
func (s *Store) Save(name string, data []byte) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid image file name: %q", name)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	s.logger.Debug("image persisted",
		zap.String("file", name),
		zap.Int("bytes", len(data)),
	)

	return s.publicPath + "/" + name, nil
}

// PublicURL 返回某文件名的公共访问 URL。
func (s *Store) PublicURL(name string) string {
	return s.publicPath + "/" + name
}

// Dir 返回存储目录。
func (s *Store) Dir() string {
	return s.dir
}

// PublicPath 返回对外 URL 前缀。
func (s *Store) PublicPath() string {
	return s.publicPath
}

// Handler 返回按精确文件名提供已持久化图像的 http.Handler，
// 挂载于 PublicPath 之下。
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(s.publicPath+"/", http.FileServer(http.Dir(s.dir)))
}

// CheckWritable 探测目录可写性，供就绪检查使用。
func (s *Store) CheckWritable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("image store not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// validName 拒绝路径分隔符与相对路径成分，文件必须直接位于存储目录下。
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return true
}
