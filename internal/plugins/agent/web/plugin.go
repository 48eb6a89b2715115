package web

import (
	"fmt"
	"slices"
	"sync"

	"github.com/netxfw/netxmap/internal/api"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/stream"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"github.com/netxfw/netxmap/pkg/sdk"
)

// WebPlugin serves the viewer WebSocket, health, stats and metrics endpoints.
// WebPlugin 提供查看者 WebSocket、健康检查、统计和指标端点。
type WebPlugin struct {
	mu     sync.Mutex
	config types.WebConfig
	server *api.Server
}

func (p *WebPlugin) Name() string {
	return "web"
}

func (p *WebPlugin) DefaultConfig() interface{} {
	return types.DefaultConfig().Web
}

func (p *WebPlugin) Validate(cfg *types.GlobalConfig) error {
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("invalid web port: %d", cfg.Web.Port)
		}
	}
	return cfg.Web.Validate()
}

func (p *WebPlugin) Init(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config = ctx.Config.Web
	if ctx.Pipeline == nil {
		return fmt.Errorf("web plugin requires a pipeline")
	}
	registry := ctx.Registry
	if registry == nil {
		registry = ctx.Pipeline.Registry()
	}

	log := logger.Get(ctx.Context)
	ws := stream.NewHandler(registry, stream.Options{
		SendBuffer:     p.config.SendBuffer,
		WriteTimeout:   p.config.WriteTimeoutDuration(),
		PingInterval:   p.config.PingIntervalDuration(),
		AllowedOrigins: p.config.AllowedOrigins,
	}, log.Named("stream"))
	p.server = api.NewServer(p.config.Addr(), ctx.Pipeline, ws, log.Named("http"))
	return nil
}

func (p *WebPlugin) Start(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Enabled {
		ctx.Logger.Infof("🌐 Web plugin is disabled via config.")
		return nil
	}
	if err := p.server.Start(ctx.Context); err != nil {
		return fmt.Errorf("failed to start web server on %s: %w", p.config.Addr(), err)
	}
	ctx.Logger.Infof("🌐 Web server started on %s (viewers at /ws)", p.server.Addr())
	return nil
}

// Addr returns the address the server is bound to.
// Addr 返回服务器绑定的地址。
func (p *WebPlugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return ""
	}
	return p.server.Addr()
}

// Stop shuts the HTTP server down. Connected viewers stay registered until the registry is closed.
// Stop 关闭 HTTP 服务器。已连接的查看者在注册表关闭前保持注册。
func (p *WebPlugin) Stop() error {
	p.mu.Lock()
	server := p.server
	p.mu.Unlock()

	if server != nil {
		return server.Stop()
	}
	return nil
}

// Reload restarts the server only when the web section changed.
// Reload 仅在 web 配置段变化时重启服务器。
func (p *WebPlugin) Reload(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	unchanged := webEqual(p.config, ctx.Config.Web)
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	ctx.Logger.Infof("🔄 [Web] Configuration changed, restarting server")
	if err := p.Stop(); err != nil {
		ctx.Logger.Warnf("⚠️  [Web] Error stopping during reload: %v", err)
	}
	if err := p.Init(ctx); err != nil {
		return err
	}
	return p.Start(ctx)
}

func webEqual(a, b types.WebConfig) bool {
	return a.Enabled == b.Enabled &&
		a.Listen == b.Listen &&
		a.Port == b.Port &&
		a.SendBuffer == b.SendBuffer &&
		a.WriteTimeout == b.WriteTimeout &&
		a.PingInterval == b.PingInterval &&
		slices.Equal(a.AllowedOrigins, b.AllowedOrigins)
}
