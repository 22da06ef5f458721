package upstream

import (
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Request 是与 HTTP 框架解耦的请求描述，URL 已解析为源站绝对地址。
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewGetRequest 构造一个不带额外头部的 GET 请求，预缓存使用。
func NewGetRequest(target *url.URL) *Request {
	return &Request{
		Method: http.MethodGet,
		URL:    target,
		Header: http.Header{},
	}
}

// Path 返回解码并归一化后的 URL 路径，与缓存 key 使用同一套折叠规则。
func (r *Request) Path() string {
	if r == nil || r.URL == nil {
		return "/"
	}
	return CleanPath(r.URL.Path)
}

// CleanPath 折叠重复斜杠与 ./.. 段，保留末尾斜杠，空路径视为 "/"。
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	trailing := len(p) > 1 && strings.HasSuffix(p, "/")
	cleaned := path.Clean("/" + p)
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// RangeHeader 返回原始 Range 头。
func (r *Request) RangeHeader() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Range")
}

// HasRange 表示请求是否携带 Range 头。
func (r *Request) HasRange() bool {
	return r.RangeHeader() != ""
}

// WithoutRange 返回去掉 Range/If-Range 的副本，用于向源站请求完整对象。
func (r *Request) WithoutRange() *Request {
	clone := *r
	clone.Header = r.Header.Clone()
	if clone.Header == nil {
		clone.Header = http.Header{}
	}
	clone.Header.Del("Range")
	clone.Header.Del("If-Range")
	return &clone
}

// Envelope 是一次请求的完整响应：状态码、头部与已缓冲的正文。
// 每个请求单独构造，返回后不再修改。
type Envelope struct {
	Status int
	Header http.Header
	Body   []byte
	// CacheHit 表示正文来自本地缓存（包括由缓存派生的 206/416）。
	CacheHit bool
}

// NewEnvelope 构造带 Content-Type 与 Content-Length 的响应。
func NewEnvelope(status int, contentType string, body []byte) *Envelope {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &Envelope{
		Status: status,
		Header: header,
		Body:   body,
	}
}

// ContentType 返回响应的 Content-Type。
func (e *Envelope) ContentType() string {
	if e == nil || e.Header == nil {
		return ""
	}
	return e.Header.Get("Content-Type")
}
