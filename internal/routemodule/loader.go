package routemodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/logging"
	"github.com/routekit/routekit/internal/metrics"
)

const manifestExt = ".toml"

// LoadedModule 描述一个成功加载的模块。
type LoadedModule struct {
	Manifest    string `json:"manifest"`
	Module      string `json:"module"`
	Kind        Kind   `json:"kind"`
	MountPath   string `json:"mount_path,omitempty"`
	Description string `json:"description,omitempty"`
	Routes      int    `json:"routes"`
}

// FailedModule 描述一个被跳过的模块及原因。
type FailedModule struct {
	Manifest string `json:"manifest"`
	Module   string `json:"module,omitempty"`
	Error    string `json:"error"`
}

// Report 汇总一次加载的结果。
type Report struct {
	Loaded   []LoadedModule `json:"loaded"`
	Failed   []FailedModule `json:"failed"`
	Shadowed []Shadow       `json:"shadowed"`
}

// Loader 扫描清单目录，逐个实例化路由单元并把登记提交到 Table。
type Loader struct {
	dir     string
	base    ModuleContext
	table   *Table
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewLoader 创建加载器。base 为所有单元共享的上下文，其 Router/Logger/Manifest 会按单元覆盖。
func NewLoader(dir string, base ModuleContext, table *Table, logger *logrus.Logger, m *metrics.Metrics) *Loader {
	if table == nil {
		table = NewTable()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{dir: dir, base: base, table: table, logger: logger, metrics: m}
}

// Table 返回加载器写入的路由表。
func (l *Loader) Table() *Table {
	return l.table
}

// Load 按目录列举顺序加载全部清单。单个模块的任何失败都只记录 warning 并跳过；
// 目录不存在时以零模块继续。目录存在却无法读取，或 ctx 被取消时返回错误。
func (l *Loader) Load(ctx context.Context) (Report, error) {
	var report Report

	manifests, err := l.discover()
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.WithFields(logrus.Fields{
			"action": "load_modules",
			"dir":    l.dir,
		}).Warn(fmt.Sprintf("routes directory missing, no modules loaded: %v", err))
		return report, nil
	}
	if err != nil {
		return report, apperr.Configuration("routes directory %s unreadable: %v", l.dir, err)
	}

	for _, file := range manifests {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		manifest, err := readManifest(file)
		if err != nil {
			l.fail(&report, file, "", err)
			continue
		}
		if !manifest.IsEnabled() {
			l.logger.WithFields(logging.ModuleFields(file, manifest.Module)).Info("module disabled")
			continue
		}

		unit, kind, routes, err := l.instantiate(ctx, manifest)
		if err != nil {
			l.fail(&report, file, manifest.Module, err)
			continue
		}

		shadows, err := l.table.Commit(unit.Key, routes)
		if err != nil {
			l.fail(&report, file, unit.Key, err)
			continue
		}
		for _, shadow := range shadows {
			l.logger.WithFields(logrus.Fields{
				"action":   "load_module",
				"method":   shadow.Method,
				"path":     shadow.Path,
				"previous": shadow.Previous,
				"winner":   shadow.Winner,
			}).Warn(fmt.Sprintf("route %s %s from module %s shadowed by module %s", shadow.Method, shadow.Path, shadow.Previous, shadow.Winner))
		}
		report.Shadowed = append(report.Shadowed, shadows...)

		description := manifest.Description
		if description == "" {
			description = unit.Description
		}
		report.Loaded = append(report.Loaded, LoadedModule{
			Manifest:    filepath.Base(file),
			Module:      unit.Key,
			Kind:        kind,
			MountPath:   manifest.MountPath,
			Description: description,
			Routes:      len(routes),
		})
		l.metrics.ObserveModule("loaded")

		fields := logging.ModuleFields(file, unit.Key)
		fields["kind"] = string(kind)
		fields["routes"] = len(routes)
		l.logger.WithFields(fields).Info("module loaded")
	}

	l.logger.WithFields(logrus.Fields{
		"action": "load_modules",
		"dir":    l.dir,
		"loaded": len(report.Loaded),
		"failed": len(report.Failed),
		"routes": l.table.Len(),
	}).Info("route modules ready")
	return report, nil
}

func (l *Loader) fail(report *Report, file, module string, err error) {
	report.Failed = append(report.Failed, FailedModule{
		Manifest: filepath.Base(file),
		Module:   module,
		Error:    err.Error(),
	})
	l.metrics.ObserveModule("failed")
	l.logger.WithFields(logging.ModuleFields(file, module)).Warn(fmt.Sprintf("module skipped: %v", err))
}

// discover 返回目录中按文件名排序的清单路径，忽略子目录以及以 "_" 或 "." 开头的文件。
func (l *Loader) discover() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), manifestExt) {
			continue
		}
		files = append(files, filepath.Join(l.dir, name))
	}
	return files, nil
}

func readManifest(file string) (Manifest, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := v.Unmarshal(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	manifest.File = file
	if strings.TrimSpace(manifest.Module) == "" {
		manifest.Module = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	manifest.Module = normalizeKey(manifest.Module)
	return manifest, nil
}

// instantiate 在暂存路由器上运行单元，单元 panic 会被转换为错误。
func (l *Loader) instantiate(ctx context.Context, manifest Manifest) (unit Unit, kind Kind, routes []RouteDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			routes = nil
		}
	}()

	unit, ok := Resolve(manifest.Module)
	if !ok {
		return unit, KindInvalid, nil, fmt.Errorf("unit %s is not registered", manifest.Module)
	}

	staging := NewRouter()
	mc := l.base
	mc.Router = staging
	mc.Manifest = manifest
	mc.Logger = l.logger.WithFields(logging.ModuleFields(manifest.File, unit.Key))

	kind = unit.Kind()
	switch kind {
	case KindFactory:
		if err := unit.Factory(ctx, &mc); err != nil {
			return unit, kind, nil, err
		}
		if manifest.MountPath == "" {
			return unit, kind, staging.Routes(), nil
		}
		mounted := NewRouter()
		mounted.mount(manifest.MountPath, staging)
		return unit, kind, mounted.Routes(), nil

	case KindDescriptor:
		desc, err := unit.Descriptor(&mc)
		if err != nil {
			return unit, kind, nil, err
		}
		if desc.Router == nil {
			return unit, kind, nil, errors.New("descriptor returned no router")
		}
		mountPath := manifest.MountPath
		if mountPath == "" {
			mountPath = desc.MountPath
		}
		if mountPath == "" {
			return unit, kind, nil, errors.New("descriptor returned no mount path")
		}
		mounted := NewRouter()
		mounted.mount(mountPath, desc.Router)
		return unit, kind, mounted.Routes(), nil

	default:
		return unit, kind, nil, errors.New("unit exports neither a factory nor a descriptor")
	}
}
