package normalize

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"github.com/BaSui01/imageflow/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubFetcher 按 URL 返回预置字节，可对指定 URL 注入延迟或错误。
type stubFetcher struct {
	mu      sync.Mutex
	byURL   map[string][]byte
	delays  map[string]time.Duration
	failURL string
	calls   int
}

func (f *stubFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delays[url]
	data, ok := f.byURL[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if url == f.failURL {
		return nil, types.NewError(types.ErrUpstreamError, "fetch failed")
	}
	if !ok {
		return nil, types.NewError(types.ErrUpstreamError, "unknown url")
	}
	return data, nil
}

func newTestNormalizer(t *testing.T, fetcher upstream.Fetcher) (*Normalizer, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), "/img", zap.NewNop())
	require.NoError(t, err)
	return New(fetcher, st, zap.NewNop(), nil), st
}

func TestNormalize_MixedHostedAndInline(t *testing.T) {
	fetcher := &stubFetcher{byURL: map[string][]byte{
		"https://cdn.example.com/a.png": []byte("hosted-a"),
	}}
	n, st := newTestNormalizer(t, fetcher)

	items := []upstream.ImageItem{
		{URL: "https://cdn.example.com/a.png"},
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("inline-b"))},
	}

	urls, err := n.Normalize(context.Background(), items, "generate")
	require.NoError(t, err)
	require.Len(t, urls, 2)

	for i, url := range urls {
		require.True(t, strings.HasPrefix(url, "/img/"), "url %d: %s", i, url)
		assert.True(t, strings.HasSuffix(url, fmt.Sprintf("_%d.png", i)))
	}

	// 落盘内容与来源一致
	dataA, err := os.ReadFile(filepath.Join(st.Dir(), filepath.Base(urls[0])))
	require.NoError(t, err)
	assert.Equal(t, []byte("hosted-a"), dataA)

	dataB, err := os.ReadFile(filepath.Join(st.Dir(), filepath.Base(urls[1])))
	require.NoError(t, err)
	assert.Equal(t, []byte("inline-b"), dataB)
}

func TestNormalize_OrderIndependentOfCompletion(t *testing.T) {
	// 第一个条目人为放慢，确保完成顺序与下标顺序相反。
	fetcher := &stubFetcher{
		byURL: map[string][]byte{
			"https://cdn.example.com/slow.png": []byte("slow"),
			"https://cdn.example.com/fast.png": []byte("fast"),
		},
		delays: map[string]time.Duration{
			"https://cdn.example.com/slow.png": 50 * time.Millisecond,
		},
	}
	n, st := newTestNormalizer(t, fetcher)

	items := []upstream.ImageItem{
		{URL: "https://cdn.example.com/slow.png"},
		{URL: "https://cdn.example.com/fast.png"},
	}

	urls, err := n.Normalize(context.Background(), items, "generate")
	require.NoError(t, err)
	require.Len(t, urls, 2)

	data0, err := os.ReadFile(filepath.Join(st.Dir(), filepath.Base(urls[0])))
	require.NoError(t, err)
	assert.Equal(t, []byte("slow"), data0)

	data1, err := os.ReadFile(filepath.Join(st.Dir(), filepath.Base(urls[1])))
	require.NoError(t, err)
	assert.Equal(t, []byte("fast"), data1)
}

func TestNormalize_AnyFailureFailsAll(t *testing.T) {
	fetcher := &stubFetcher{
		byURL: map[string][]byte{
			"https://cdn.example.com/ok.png": []byte("ok"),
		},
		failURL: "https://cdn.example.com/bad.png",
	}
	n, _ := newTestNormalizer(t, fetcher)

	items := []upstream.ImageItem{
		{URL: "https://cdn.example.com/ok.png"},
		{URL: "https://cdn.example.com/bad.png"},
	}

	urls, err := n.Normalize(context.Background(), items, "generate")
	require.Error(t, err)
	assert.Nil(t, urls)
}

func TestNormalize_InvalidBase64(t *testing.T) {
	n, _ := newTestNormalizer(t, &stubFetcher{})

	_, err := n.Normalize(context.Background(), []upstream.ImageItem{
		{B64JSON: "not base64!!!"},
	}, "generate")
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestNormalize_EmptyItem(t *testing.T) {
	n, _ := newTestNormalizer(t, &stubFetcher{})

	_, err := n.Normalize(context.Background(), []upstream.ImageItem{{}}, "generate")
	require.Error(t, err)
}

func TestNormalize_NoItems(t *testing.T) {
	n, _ := newTestNormalizer(t, &stubFetcher{})

	urls, err := n.Normalize(context.Background(), nil, "generate")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestNormalize_DistinctFilesAcrossCalls(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("same"))
	n, st := newTestNormalizer(t, &stubFetcher{})

	first, err := n.Normalize(context.Background(), []upstream.ImageItem{{B64JSON: payload}}, "edit_bulk")
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), []upstream.ImageItem{{B64JSON: payload}}, "edit_bulk")
	require.NoError(t, err)

	assert.NotEqual(t, first[0], second[0])

	entries, err := os.ReadDir(st.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
