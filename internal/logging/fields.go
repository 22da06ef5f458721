package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供策略/路径/命中状态字段，供代理请求日志复用。
func RequestFields(strategy, path, requestID string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"strategy":  strategy,
		"path":      path,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// GenerationFields 提供缓存代生命周期日志的公共字段。
func GenerationFields(action, version string) logrus.Fields {
	return logrus.Fields{
		"action":  action,
		"version": version,
	}
}
