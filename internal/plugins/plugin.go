package plugins

import (
	"github.com/netxfw/netxmap/pkg/sdk"
)

// Plugin is the interface every netxmap plugin implements.
// Plugin 是所有 netxmap 插件实现的接口。
type Plugin = sdk.Plugin
