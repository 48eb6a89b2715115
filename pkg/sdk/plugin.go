package sdk

import (
	"context"

	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/plugins/types"
)

// PluginContext provides the environment for a plugin to operate in.
// It carries the running pipeline, its subscriber registry and the global configuration.
// PluginContext 为插件运行提供环境。
// 它携带运行中的流水线、其订阅者注册表以及全局配置。
type PluginContext struct {
	context.Context
	// Config holds the current global configuration snapshot.
	// Config 保存当前的全局配置快照。
	Config *types.GlobalConfig
	// Logger is the standard logger for plugins.
	// Logger 是插件的标准日志记录器。
	Logger Logger
	// Pipeline is the event pipeline. It may be nil when only validating configuration.
	// Pipeline 是事件流水线，仅校验配置时可能为 nil。
	Pipeline *feed.Pipeline
	// Registry holds the subscribers the pipeline broadcasts to.
	// Registry 保存流水线广播的订阅者。
	Registry *feed.Registry
	// Bus carries daemon lifecycle events between plugins.
	// Bus 在插件之间传递守护进程生命周期事件。
	Bus EventBus
}

// Logger defines the logging interface for plugins.
// Logger 为插件定义日志接口。
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Plugin defines the standard interface for all netxmap plugins.
// Plugin 为所有 netxmap 插件定义标准接口。
type Plugin interface {
	// Name returns the unique identifier for the plugin.
	// Name 返回插件的唯一标识符。
	Name() string

	// Init initializes the plugin with configuration.
	// This is called once when the plugin is loaded.
	// Init 使用配置初始化插件，加载时调用一次。
	Init(ctx *PluginContext) error

	// Start begins the plugin's execution.
	// Start 开始插件的执行。
	Start(ctx *PluginContext) error

	// Stop gracefully shuts down the plugin and releases its resources.
	// Stop 优雅地关闭插件并释放资源。
	Stop() error

	// Reload applies a new configuration, typically on SIGHUP.
	// Reload 应用新配置，通常由 SIGHUP 触发。
	Reload(ctx *PluginContext) error

	// DefaultConfig returns the default configuration section of the plugin.
	// DefaultConfig 返回插件的默认配置段。
	DefaultConfig() interface{}

	// Validate checks the plugin's section before it is applied.
	// Validate 在应用之前检查插件的配置段。
	Validate(config *types.GlobalConfig) error
}
