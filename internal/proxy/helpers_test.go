package proxy

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
	"github.com/sang-cache/sang-cache/internal/generation"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

const testOrigin = "https://sang.example"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubFetcher 模拟源站：按路径返回预设响应，down 为 true 时全部返回 NetworkError。
type stubFetcher struct {
	mu        sync.Mutex
	down      bool
	responses map[string]*upstream.Envelope
	requests  []*upstream.Request
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: map[string]*upstream.Envelope{}}
}

func (f *stubFetcher) serve(path string, status int, contentType string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = upstream.NewEnvelope(status, contentType, body)
}

func (f *stubFetcher) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *stubFetcher) lastRequest() *upstream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *stubFetcher) Fetch(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.down {
		return nil, &upstream.NetworkError{URL: req.URL.String(), Err: errors.New("connection refused")}
	}
	resp, ok := f.responses[req.URL.Path]
	if !ok {
		return upstream.NewEnvelope(http.StatusNotFound, "text/plain", []byte("not found")), nil
	}
	clone := *resp
	clone.Header = resp.Header.Clone()
	clone.Body = append([]byte(nil), resp.Body...)
	return &clone, nil
}

type engineFixture struct {
	engine  *Engine
	fetcher *stubFetcher
	manager *generation.Manager
	handle  cache.Handle
}

func newEngineFixture(t *testing.T, opts Options) *engineFixture {
	t.Helper()
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	manager := generation.NewManager(store, "sang-v3", quietLogger())
	handle, err := manager.Open(context.Background())
	if err != nil {
		t.Fatalf("open generation: %v", err)
	}
	fetcher := newStubFetcher()
	return &engineFixture{
		engine:  NewEngine(manager, fetcher, quietLogger(), opts),
		fetcher: fetcher,
		manager: manager,
		handle:  handle,
	}
}

func (f *engineFixture) keys(t *testing.T) []string {
	t.Helper()
	keys, err := f.handle.Keys(context.Background())
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	return keys
}

func newRequest(t *testing.T, path string, header ...string) *upstream.Request {
	t.Helper()
	target, err := url.Parse(testOrigin + path)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	req := upstream.NewGetRequest(target)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return req
}

func audioPayload(n int) []byte {
	body := make([]byte, n)
	for i := range body {
		body[i] = byte(i % 251)
	}
	return body
}

// brokenOpener 模拟存储无法打开。
type brokenOpener struct{}

func (brokenOpener) Open(context.Context) (cache.Handle, error) {
	return nil, cache.ErrStoreUnavailable
}

// nilOpener 模拟打开成功但没有可写代的情况。
type nilOpener struct{}

func (nilOpener) Open(context.Context) (cache.Handle, error) {
	return nil, nil
}
