package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Fetcher 是对网络能力的抽象：fetch(request) → response | NetworkError。
// 任何收到的 HTTP 响应（包括 4xx/5xx）都算成功，只有传输失败才返回错误。
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Envelope, error)
}

// NetworkError 表示请求未能从源站拿到完整响应。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPFetcher 通过共享 http.Client 访问源站，并把正文完整读入内存。
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher constructs a fetcher around the shared origin client.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch 发起请求；读取正文中途失败同样视为 NetworkError，避免把截断的正文当作完整对象。
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Envelope, error) {
	if req == nil || req.URL == nil {
		return nil, &NetworkError{Err: fmt.Errorf("request url required")}
	}
	target := req.URL.String()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	CopyHeaders(httpReq.Header, req.Header)
	httpReq.Header.Del("Host")
	httpReq.Header.Del("Accept-Encoding")
	httpReq.Host = req.URL.Host

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	header := make(http.Header, len(resp.Header))
	CopyHeaders(header, resp.Header)
	header.Set("Content-Length", strconv.Itoa(len(payload)))

	return &Envelope{
		Status: resp.StatusCode,
		Header: header,
		Body:   payload,
	}, nil
}
