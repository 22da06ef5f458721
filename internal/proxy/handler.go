package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/sang-cache/sang-cache/internal/upstream"
)

// buildRequest 将 Fiber 请求转换为指向源站的 upstream.Request，并补充 X-Forwarded-* 头。
func buildRequest(c fiber.Ctx, origin *url.URL) (*upstream.Request, error) {
	if origin == nil {
		return nil, fmt.Errorf("origin not configured")
	}
	ref, err := url.ParseRequestURI(c.OriginalURL())
	if err != nil {
		return nil, fmt.Errorf("parse request uri: %w", err)
	}
	ref.Fragment = ""
	target := origin.ResolveReference(ref)
	// 分类、缓存 key 与回源共用同一个归一化路径，"//admin"、"/%2Fadmin" 不能绕过排除规则。
	target.Path = upstream.CleanPath(target.Path)
	target.RawPath = ""

	header := fiberHeadersAsHTTP(c)
	header.Del("Host")
	header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			header.Set("X-Forwarded-For", ip)
		}
	}
	header.Set("X-Forwarded-Proto", c.Scheme())

	return &upstream.Request{
		Method: c.Method(),
		URL:    target,
		Header: header,
		Body:   append([]byte(nil), c.Body()...),
	}, nil
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// writeEnvelope 写回状态码、头部与正文；Content-Length 由 fasthttp 按正文长度计算。
func writeEnvelope(c fiber.Ctx, env *upstream.Envelope, strategy Strategy, requestID string) error {
	for key, values := range env.Header {
		if upstream.IsHopByHopHeader(key) || strings.EqualFold(key, fiber.HeaderContentLength) {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
	c.Set("X-Sang-Cache-Hit", strconv.FormatBool(env.CacheHit))
	c.Set("X-Sang-Cache-Strategy", string(strategy))
	setRequestIDHeader(c, requestID)

	c.Status(env.Status)
	return c.Send(env.Body)
}

func writeError(c fiber.Ctx, status int, code, requestID string) error {
	setRequestIDHeader(c, requestID)
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}
