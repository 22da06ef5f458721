package cache

import (
	"net/url"
	"path"
	"strings"
)

// Key 将请求 URL 归一化为缓存 key：scheme + host + path（+ query），fragment 总是丢弃。
// ignoreQuery 为 true 时仅按路径匹配，音频条目使用这种形式。
func Key(u *url.URL, ignoreQuery bool) string {
	if u == nil {
		return ""
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	trailing := len(p) > 1 && strings.HasSuffix(p, "/")
	p = path.Clean("/" + p)
	if trailing && p != "/" {
		p += "/"
	}

	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(strings.ToLower(u.Scheme))
		b.WriteString("://")
	}
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(p)
	if !ignoreQuery && u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}
