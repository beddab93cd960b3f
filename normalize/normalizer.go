// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

package normalize

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"github.com/BaSui01/imageflow/upstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder 接收持久化完成事件，用于指标采集。
type Recorder interface {
	ImagePersisted(operation string, bytes int)
}

// Normalizer 将上游返回的图像条目统一落盘为本地文件，
// 并产出与输入同序、同长度的公开 URL 列表。
type Normalizer struct {
	fetcher  upstream.Fetcher
	store    *store.Store
	logger   *zap.Logger
	recorder Recorder
}

// New 创建规整器。recorder 可为 nil。
func New(fetcher upstream.Fetcher, st *store.Store, logger *zap.Logger, recorder Recorder) *Normalizer {
	return &Normalizer{
		fetcher:  fetcher,
		store:    st,
		logger:   logger,
		recorder: recorder,
	}
}

// Normalize 并发处理所有条目：托管 URL 下载、内联 base64 解码，
// 逐条写入存储后按原始下标放回结果切片。
// 任一条目失败即整体失败，已落盘的文件不回收。
func (n *Normalizer) Normalize(ctx context.Context, items []upstream.ImageItem, prefix string) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}

	uid := n.store.NewUID()
	urls := make([]string, len(items))

	g, ctx := errgroup.WithContext(ctx)
	for idx, item := range items {
		idx, item := idx, item
		g.Go(func() error {
			data, err := n.resolve(ctx, &item)
			if err != nil {
				return fmt.Errorf("image %d: %w", idx, err)
			}

			name := store.FileName(prefix, uid, idx)
			url, err := n.store.Save(name, data)
			if err != nil {
				return fmt.Errorf("image %d: %w", idx, err)
			}

			urls[idx] = url
			if n.recorder != nil {
				n.recorder.ImagePersisted(prefix, len(data))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		n.logger.Error("图像规整失败",
			zap.String("prefix", prefix),
			zap.String("uid", uid),
			zap.Int("count", len(items)),
			zap.Error(err))
		return nil, types.AsError(err)
	}

	n.logger.Info("图像规整完成",
		zap.String("prefix", prefix),
		zap.String("uid", uid),
		zap.Int("count", len(items)))
	return urls, nil
}

// resolve 取出单个条目的原始字节。托管 URL 优先于内联数据。
func (n *Normalizer) resolve(ctx context.Context, item *upstream.ImageItem) ([]byte, error) {
	if item.Hosted() {
		return n.fetcher.FetchBytes(ctx, item.URL)
	}
	if item.B64JSON == "" {
		return nil, types.NewError(types.ErrUpstreamError, "image item carries neither url nor b64_json")
	}
	data, err := base64.StdEncoding.DecodeString(item.B64JSON)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "invalid base64 image payload").WithCause(err)
	}
	return data, nil
}
