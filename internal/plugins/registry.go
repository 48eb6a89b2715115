package plugins

import (
	"github.com/netxfw/netxmap/internal/plugins/agent/metrics"
	"github.com/netxfw/netxmap/internal/plugins/agent/relay"
	"github.com/netxfw/netxmap/internal/plugins/agent/web"
)

// GetPlugins returns a fresh instance of every available plugin, in start order.
// GetPlugins 按启动顺序返回所有可用插件的新实例。
func GetPlugins() []Plugin {
	return []Plugin{
		&web.WebPlugin{},
		&metrics.MetricsPlugin{},
		&relay.RelayPlugin{},
	}
}
