package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedBackends = map[string]struct{}{
	"fs":     {},
	"sqlite": {},
}

const supportedBackendList = "fs|sqlite"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别")
		}
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	backend := strings.ToLower(strings.TrimSpace(g.StorageBackend))
	if backend != "" {
		if _, ok := supportedBackends[backend]; !ok {
			return newFieldError("Global.StorageBackend", "仅支持 "+supportedBackendList)
		}
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if err := validateOrigin(g.Origin); err != nil {
		return fmt.Errorf("Global.Origin: %w", err)
	}

	cc := c.Cache
	if cc.Version == "" {
		return newFieldError("Cache.CacheVersion", "不能为空")
	}
	if strings.ContainsAny(cc.Version, `/\`) || strings.HasPrefix(cc.Version, ".") {
		return newFieldError("Cache.CacheVersion", "不能包含路径分隔符或以 . 开头")
	}
	if cc.PrecacheConcurrency < 0 {
		return newFieldError("Cache.PrecacheConcurrency", "不能为负数")
	}
	if cc.AdminPrefix != "" && !strings.HasPrefix(cc.AdminPrefix, "/") {
		return newFieldError("Cache.AdminPrefix", "必须以 / 开头")
	}
	if cc.AudioExtension != "" && !strings.HasPrefix(cc.AudioExtension, ".") {
		return newFieldError("Cache.AudioExtension", "必须以 . 开头")
	}
	for i, entry := range cc.Precache {
		if !strings.HasPrefix(entry, "/") {
			return newFieldError(precacheField(i), "必须是以 / 开头的绝对路径")
		}
	}

	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("源站缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("源站不支持路径前缀: %s", raw)
	}
	return nil
}
