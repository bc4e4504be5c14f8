package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 method/path/request_id 字段，供网关与错误日志复用。
func RequestFields(method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// ModuleFields 描述路由模块加载过程中的上下文。
func ModuleFields(manifest, moduleKey string) logrus.Fields {
	return logrus.Fields{
		"action":   "load_module",
		"manifest": manifest,
		"module":   moduleKey,
	}
}
