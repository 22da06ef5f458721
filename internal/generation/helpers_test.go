package generation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

const testOrigin = "https://sang.example"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) cache.Store {
	t.Helper()
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustOrigin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(testOrigin)
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}
	return u
}

// stubFetcher 按路径返回预设响应，记录请求次数。
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*upstream.Envelope
	failures  map[string]error
	calls     map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		responses: map[string]*upstream.Envelope{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *stubFetcher) serve(path, contentType, body string) {
	f.responses[path] = upstream.NewEnvelope(http.StatusOK, contentType, []byte(body))
}

func (f *stubFetcher) Fetch(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	f.mu.Lock()
	f.calls[req.URL.Path]++
	resp, ok := f.responses[req.URL.Path]
	failure := f.failures[req.URL.Path]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &upstream.NetworkError{URL: req.URL.String(), Err: err}
	}
	if failure != nil {
		return nil, &upstream.NetworkError{URL: req.URL.String(), Err: failure}
	}
	if !ok {
		return upstream.NewEnvelope(http.StatusNotFound, "text/plain", []byte("not found")), nil
	}
	return resp, nil
}

// flakyDeleteStore 让指定代的删除失败，用于验证激活时跳过失败项。
type flakyDeleteStore struct {
	cache.Store
	failOn string
}

func (s *flakyDeleteStore) DeleteGeneration(ctx context.Context, generation string) error {
	if generation == s.failOn {
		return errors.New("device busy")
	}
	return s.Store.DeleteGeneration(ctx, generation)
}

// brokenStore 模拟底层无法打开。
type brokenStore struct{}

func (brokenStore) Open(context.Context, string) (cache.Handle, error) {
	return nil, errors.New("disk unplugged")
}

func (brokenStore) Generations(context.Context) ([]string, error) {
	return nil, errors.New("disk unplugged")
}

func (brokenStore) DeleteGeneration(context.Context, string) error {
	return errors.New("disk unplugged")
}

func (brokenStore) Close() error { return nil }

func seedGeneration(t *testing.T, store cache.Store, name string) {
	t.Helper()
	handle, err := store.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	if _, err := handle.Put(context.Background(), testOrigin+"/seed", cache.Object{Body: []byte(name)}); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}
