package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/geoip"
	"github.com/netxfw/netxmap/internal/metrics"
	"github.com/netxfw/netxmap/internal/plugins"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/logger"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
	"github.com/netxfw/netxmap/pkg/sdk"
	"go.uber.org/zap"
)

// daemon holds what a running instance owns between startup and shutdown.
type daemon struct {
	cm       *config.ConfigManager
	log      *zap.SugaredLogger
	pipeline *feed.Pipeline
	registry *feed.Registry
	bus      *sdk.DefaultEventBus
	plugins  []sdk.Plugin
	started  []sdk.Plugin
	pctx     *sdk.PluginContext
}

// Run starts the pipeline and plugins and blocks until ctx is cancelled,
// SIGINT/SIGTERM arrives or the pipeline fails. SIGHUP reloads the configuration.
// A pipeline failure is returned; a requested shutdown returns nil.
// Run 启动流水线和插件并阻塞，直到 ctx 取消、收到 SIGINT/SIGTERM 或流水线失败。
// SIGHUP 重新加载配置。流水线失败时返回错误，主动关闭返回 nil。
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	path := opts.ConfigPath
	if path == "" {
		path = config.GetConfigPath()
	}

	cm := config.NewConfigManager(path)
	if err := cm.LoadConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s (run 'netxmap config init')", apperrors.ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg := cm.GetConfig()

	logger.Init(cfg.Logging)
	defer func() { _ = logger.Sync() }()
	log := logger.Get(ctx)
	ctx = logger.WithContext(ctx, log)

	log.Infof("🚀 Starting netxmap (config: %s)", path)

	if cfg.Base.PidFile != "" {
		if err := managePidFile(cfg.Base.PidFile); err != nil {
			return err
		}
		defer removePidFile(cfg.Base.PidFile, log)
	}

	if cfg.Base.EnablePprof {
		srv, err := startPprof(cfg.Base.PprofPort, log)
		if err != nil {
			log.Warnf("⚠️  %v", err)
		}
		defer shutdownServer(srv)
	}

	d := &daemon{cm: cm, log: log, plugins: opts.Plugins}
	if d.plugins == nil {
		d.plugins = plugins.GetPlugins()
	}

	resolver, err := geoip.Open(ResolverOptions(cfg.GeoIP))
	if err != nil {
		return fmt.Errorf("failed to open location resolver: %w", err)
	}
	defer func() { _ = geoip.Close(resolver) }()
	log.Infof("🌍 Location resolver: %s", geoip.Describe(resolver))

	filter, err := feed.CompileFilter(cfg.Feed.Filter)
	if err != nil {
		return apperrors.NewConfigError("feed.filter", err)
	}

	d.registry = feed.NewRegistry()
	d.registry.OnChange = func(n int) { metrics.SubscribersCount.Set(float64(n)) }
	d.pipeline = feed.NewPipeline(feed.Options{
		SourcePath:    cfg.Feed.SourcePath,
		PollInterval:  cfg.Feed.PollDuration(),
		ReOpen:        cfg.Feed.ReOpen,
		Filter:        filter,
		Resolver:      resolver,
		LookupTimeout: cfg.GeoIP.LookupTimeoutDuration(),
		Registry:      d.registry,
		Logger:        log.Named("feed"),
	})
	d.bus = sdk.NewEventBus()
	d.pctx = d.pluginContext(ctx, cfg)

	defer d.registry.CloseAll()
	defer d.stopPlugins()
	if err := d.startPlugins(); err != nil {
		return err
	}

	sig := opts.Signals
	if sig == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(ch)
		sig = ch
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.pipeline.Run(runCtx) }()

	log.Infof("🛡️ netxmap is running, following %s", cfg.Feed.SourcePath)

	for {
		select {
		case <-ctx.Done():
			return d.shutdown(cancel, done)
		case s := <-sig:
			if s == syscall.SIGHUP {
				d.reload()
				continue
			}
			log.Infof("👋 Received %v, shutting down...", s)
			return d.shutdown(cancel, done)
		case err := <-done:
			if err == nil {
				return nil
			}
			log.Errorf("❌ Pipeline failed: %v", err)
			d.bus.Publish(sdk.NewEvent(sdk.EventTypePipelineFatal, "daemon", err))
			d.bus.Wait()
			return fmt.Errorf("pipeline failed: %w", err)
		}
	}
}

// ResolverOptions maps the geoip config section onto resolver options.
// ResolverOptions 将 geoip 配置段映射为解析器选项。
func ResolverOptions(c types.GeoIPConfig) geoip.Options {
	return geoip.Options{
		DatabasePath: c.DatabasePath,
		StaticPath:   c.StaticPath,
		Locale:       c.Locale,
		CacheSize:    c.CacheSize,
		CacheTTL:     c.CacheTTLDuration(),
	}
}

func (d *daemon) pluginContext(ctx context.Context, cfg *types.GlobalConfig) *sdk.PluginContext {
	return &sdk.PluginContext{
		Context:  ctx,
		Config:   cfg,
		Logger:   d.log,
		Pipeline: d.pipeline,
		Registry: d.registry,
		Bus:      d.bus,
	}
}

// startPlugins initializes and starts each plugin in order. Any failure aborts startup.
func (d *daemon) startPlugins() error {
	for _, p := range d.plugins {
		if err := p.Init(d.pctx); err != nil {
			return apperrors.NewPluginError(p.Name(), "init", err)
		}
		if err := p.Start(d.pctx); err != nil {
			return apperrors.NewPluginError(p.Name(), "start", err)
		}
		d.started = append(d.started, p)
	}
	return nil
}

// stopPlugins stops started plugins in reverse order.
func (d *daemon) stopPlugins() {
	for _, p := range slices.Backward(d.started) {
		if err := p.Stop(); err != nil {
			d.log.Warnf("⚠️  Failed to stop plugin %s: %v", p.Name(), err)
		}
	}
	d.started = nil
}

func (d *daemon) shutdown(cancel context.CancelFunc, done <-chan error) error {
	cancel()
	if err := <-done; err != nil {
		d.log.Warnf("⚠️  Pipeline ended with error during shutdown: %v", err)
	}
	st := d.pipeline.Stats()
	d.log.Infof("📊 Final stats: lines=%d decode_errors=%d filtered=%d broadcasts=%d pruned=%d",
		st.Lines, st.DecodeErrors, st.Filtered, st.Broadcasts, st.Pruned)
	return nil
}

// reload re-reads the configuration file and applies what can change at runtime:
// log level, global filter and plugin sections. Feed and GeoIP sources need a restart.
// reload 重新读取配置文件并应用可在运行时变更的部分：日志级别、全局过滤器和插件配置。
// 事件源与 GeoIP 的变更需要重启。
func (d *daemon) reload() {
	d.log.Infof("🔄 Received SIGHUP, reloading configuration...")
	old, cur, err := d.cm.Reload()
	if err != nil {
		d.log.Errorf("❌ Failed to reload config: %v", err)
		return
	}

	logger.SetLevel(cur.Logging.Level)

	if cur.Feed.Filter != old.Feed.Filter {
		f, err := feed.CompileFilter(cur.Feed.Filter)
		if err != nil {
			d.log.Errorf("❌ Invalid filter %q: %v", cur.Feed.Filter, err)
		} else {
			d.pipeline.SetFilter(f)
			d.log.Infof("🔎 Feed filter set to %q", cur.Feed.Filter)
		}
	}
	if cur.Feed.SourcePath != old.Feed.SourcePath || cur.Feed.PollInterval != old.Feed.PollInterval ||
		cur.Feed.ReOpen != old.Feed.ReOpen {
		d.log.Warnf("⚠️  Feed source settings changed; restart to apply")
	}
	if cur.GeoIP != old.GeoIP {
		d.log.Warnf("⚠️  GeoIP settings changed; restart to apply")
	}

	d.pctx = d.pluginContext(d.pctx.Context, cur)
	for _, p := range d.started {
		if err := p.Reload(d.pctx); err != nil {
			d.log.Warnf("⚠️  Failed to reload plugin %s: %v", p.Name(), err)
		}
	}

	d.bus.Publish(sdk.NewEvent(sdk.EventTypeConfigReload, "daemon", cur))
	d.log.Infof("✅ Configuration reloaded")
}
