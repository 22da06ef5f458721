package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

// Strategy 表示请求的缓存策略。
type Strategy string

const (
	StrategyExcluded   Strategy = "excluded"
	StrategyAudio      Strategy = "audio"
	StrategyNavigation Strategy = "navigation"
	StrategyCacheFirst Strategy = "cache_first"
)

// RouteRules 描述分类规则中可配置的部分。
type RouteRules struct {
	AdminPrefix    string
	AudioExtension string
}

// DefaultRouteRules 返回 /admin 与 .mp3 的默认规则。
func DefaultRouteRules() RouteRules {
	return RouteRules{AdminPrefix: "/admin", AudioExtension: ".mp3"}
}

// Classify 按顺序匹配，首条命中即返回：
// 非 GET → Excluded；管理前缀 → Excluded；音频扩展名 → Audio；
// 导航请求或根路径 → Navigation；其余 → CacheFirst。
func Classify(req *upstream.Request, rules RouteRules) Strategy {
	if req == nil {
		return StrategyExcluded
	}
	if req.Method != "" && req.Method != http.MethodGet {
		return StrategyExcluded
	}

	path := req.Path()
	if rules.AdminPrefix != "" && strings.HasPrefix(path, rules.AdminPrefix) {
		return StrategyExcluded
	}
	if rules.isAudio(path) {
		return StrategyAudio
	}
	if path == "/" || isNavigation(req.Header) {
		return StrategyNavigation
	}
	return StrategyCacheFirst
}

// CacheKey 返回路径对应的缓存 key：音频忽略 querystring，其余保留。
// 预缓存写入与运行时查找必须使用同一个函数。
func (r RouteRules) CacheKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	return cache.Key(u, r.isAudio(u.Path))
}

func (r RouteRules) isAudio(path string) bool {
	return r.AudioExtension != "" && strings.HasSuffix(path, r.AudioExtension)
}

func isNavigation(header http.Header) bool {
	if header == nil {
		return false
	}
	if strings.EqualFold(header.Get("Sec-Fetch-Mode"), "navigate") {
		return true
	}
	return strings.EqualFold(header.Get("Sec-Fetch-Dest"), "document")
}
