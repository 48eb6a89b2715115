package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/relay"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"github.com/netxfw/netxmap/pkg/sdk"
	"go.uber.org/zap"
)

// superviseInterval is how often a pruned relay is put back on the feed.
const superviseInterval = 5 * time.Second

// Conn is the part of a NATS connection the plugin owns.
type Conn interface {
	relay.MsgPublisher
	Flush() error
	Close()
}

// DialFunc opens the bus connection.
type DialFunc func(cfg types.RelayConfig, log *zap.SugaredLogger) (Conn, error)

func dialNATS(cfg types.RelayConfig, log *zap.SugaredLogger) (Conn, error) {
	return relay.Connect(cfg.URL, cfg.Name, log)
}

// RelayPlugin registers a NATS publisher as a feed subscriber.
// RelayPlugin 将 NATS 发布者注册为事件流订阅者。
type RelayPlugin struct {
	// Dial defaults to a real NATS connection.
	Dial DialFunc

	// Interval between checks for a pruned relay. Defaults to five seconds.
	Interval time.Duration

	mu       sync.Mutex
	config   types.RelayConfig
	registry *feed.Registry
	log      *zap.SugaredLogger
	conn     Conn
	sub      *relay.Subscriber
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (p *RelayPlugin) Name() string {
	return "relay"
}

func (p *RelayPlugin) DefaultConfig() interface{} {
	return types.DefaultConfig().Relay
}

func (p *RelayPlugin) Validate(cfg *types.GlobalConfig) error {
	return cfg.Relay.Validate()
}

func (p *RelayPlugin) Init(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config = ctx.Config.Relay
	p.log = logger.Get(ctx.Context).Named("relay")
	p.registry = ctx.Registry
	if p.registry == nil && ctx.Pipeline != nil {
		p.registry = ctx.Pipeline.Registry()
	}
	if p.config.Enabled && p.registry == nil {
		return fmt.Errorf("relay plugin requires a subscriber registry")
	}
	if p.Dial == nil {
		p.Dial = dialNATS
	}
	if p.Interval <= 0 {
		p.Interval = superviseInterval
	}
	return nil
}

func (p *RelayPlugin) Start(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Enabled {
		ctx.Logger.Infof("📡 Relay plugin is disabled via config.")
		return nil
	}

	conn, err := p.Dial(p.config, p.log)
	if err != nil {
		return err
	}
	p.conn = conn
	if err := p.attachLocked(); err != nil {
		conn.Close()
		p.conn = nil
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx.Context)
	p.cancel = cancel
	p.wg.Add(1)
	go p.supervise(loopCtx)

	ctx.Logger.Infof("📡 Relaying events to %s on subject %s", p.config.URL, p.config.Subject)
	return nil
}

func (p *RelayPlugin) attachLocked() error {
	sub := relay.NewSubscriber(p.conn, p.config.Subject)
	if err := p.registry.Add(sub); err != nil {
		return fmt.Errorf("register relay: %w", err)
	}
	p.sub = sub
	return nil
}

// supervise puts the relay back on the feed after the broadcaster pruned it on a failed publish.
func (p *RelayPlugin) supervise(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.sub != nil && p.sub.Closed() && p.conn != nil {
				if err := p.attachLocked(); err != nil {
					p.log.Warnf("⚠️  Could not re-register relay: %v", err)
				} else {
					p.log.Infof("📡 Relay re-registered after a failed publish")
				}
			}
			p.mu.Unlock()
		}
	}
}

func (p *RelayPlugin) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub != nil {
		p.registry.Remove(p.sub.ID())
		p.sub = nil
	}
	var err error
	if p.conn != nil {
		err = p.conn.Flush()
		p.conn.Close()
		p.conn = nil
	}
	return err
}

func (p *RelayPlugin) Reload(ctx *sdk.PluginContext) error {
	p.mu.Lock()
	unchanged := p.config == ctx.Config.Relay
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := p.Stop(); err != nil {
		ctx.Logger.Warnf("⚠️  [Relay] Error stopping during reload: %v", err)
	}
	if err := p.Init(ctx); err != nil {
		return err
	}
	return p.Start(ctx)
}
