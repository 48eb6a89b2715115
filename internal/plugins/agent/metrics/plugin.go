package metrics

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netxfw/netxmap/internal/api"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/fileutil"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"github.com/netxfw/netxmap/pkg/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// pushJob is the job label used on the Pushgateway.
const pushJob = "netxmap"

// MetricsPlugin exports the process metrics: a dedicated /metrics port,
// periodic Pushgateway pushes and a node_exporter textfile.
// MetricsPlugin 导出进程指标：独立 /metrics 端口、定期推送到 Pushgateway 以及 node_exporter 文本文件。
type MetricsPlugin struct {
	config types.MetricsConfig
	log    *zap.SugaredLogger

	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	mu     sync.Mutex
	server *api.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsub  func()
}

func (p *MetricsPlugin) Name() string {
	return "metrics"
}

func (p *MetricsPlugin) DefaultConfig() interface{} {
	return types.DefaultConfig().Metrics
}

func (p *MetricsPlugin) Validate(cfg *types.GlobalConfig) error {
	return cfg.Metrics.Validate()
}

func (p *MetricsPlugin) Init(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = ctx.Config.Metrics
	p.log = logger.Get(ctx.Context)
	if p.Gatherer == nil {
		p.Gatherer = prometheus.DefaultGatherer
	}
	return nil
}

func (p *MetricsPlugin) Start(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Enabled {
		ctx.Logger.Infof("📊 Metrics plugin is disabled via config.")
		return nil
	}

	if p.config.ServerEnabled {
		p.server = api.NewMetricsServer(fmt.Sprintf(":%d", p.config.Port), p.log)
		if err := p.server.Start(ctx.Context); err != nil {
			p.server = nil
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		ctx.Logger.Infof("📊 Metrics server started on :%d", p.config.Port)
	}

	if p.exporting() {
		loopCtx, cancel := context.WithCancel(ctx.Context)
		p.cancel = cancel
		p.wg.Add(1)
		go p.exportLoop(loopCtx, p.config.PushIntervalDuration())
	}

	if ctx.Bus != nil {
		// Export once more when the pipeline dies so the final counters are not lost.
		p.unsub = ctx.Bus.Subscribe(sdk.EventTypePipelineFatal, func(sdk.Event) {
			p.Export()
		})
	}
	return nil
}

func (p *MetricsPlugin) exporting() bool {
	return p.config.PushEnabled || p.config.TextfileEnabled
}

func (p *MetricsPlugin) exportLoop(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Export()
		}
	}
}

// Export writes the textfile and pushes to the gateway, whichever is enabled.
// Export 写入文本文件并推送到网关（取决于启用项）。
func (p *MetricsPlugin) Export() {
	cfg := p.snapshot()
	if cfg.TextfileEnabled && cfg.TextfilePath != "" {
		if err := p.writeTextFile(cfg.TextfilePath); err != nil {
			p.log.Errorf("❌ Failed to write metrics textfile: %v", err)
		}
	}
	if cfg.PushEnabled && cfg.PushGatewayAddr != "" {
		if err := p.pushMetrics(cfg.PushGatewayAddr); err != nil {
			p.log.Errorf("❌ Could not push to PushGateway: %v", err)
		}
	}
}

func (p *MetricsPlugin) snapshot() types.MetricsConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

func (p *MetricsPlugin) writeTextFile(path string) error {
	mfs, err := p.Gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return fileutil.AtomicWriteFile(path, buf.Bytes(), 0644)
}

func (p *MetricsPlugin) pushMetrics(addr string) error {
	p.log.Debugf("📤 Pushing metrics to %s", addr)
	return push.New(addr, pushJob).Gatherer(p.Gatherer).Push()
}

func (p *MetricsPlugin) Stop() error {
	p.mu.Lock()
	cancel, server, unsub := p.cancel, p.server, p.unsub
	p.cancel, p.server, p.unsub = nil, nil, nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
		p.wg.Wait()
		p.Export()
	}
	if server != nil {
		return server.Stop()
	}
	return nil
}

func (p *MetricsPlugin) Reload(ctx *sdk.PluginContext) error {
	if err := p.Stop(); err != nil {
		p.log.Warnf("⚠️  [Metrics] Error stopping during reload: %v", err)
	}
	if err := p.Init(ctx); err != nil {
		return err
	}
	return p.Start(ctx)
}
