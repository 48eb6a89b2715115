package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netxfw/netxmap/internal/geoip"
	"github.com/netxfw/netxmap/internal/metrics"
	"go.uber.org/zap"
)

// State is the lifecycle phase of a Pipeline.
// State 是流水线的生命周期阶段。
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateFatal
	StateStopped
)

// States lists every state name, in order.
var States = []string{"STARTING", "RUNNING", "FATAL", "STOPPED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(States) {
		return "UNKNOWN"
	}
	return States[s]
}

// maxLoggedLine caps how much of a bad line ends up in the log.
const maxLoggedLine = 256

// Options configures a Pipeline.
// Options 配置流水线。
type Options struct {
	SourcePath    string
	PollInterval  time.Duration
	ReOpen        bool
	Filter        *Filter
	Resolver      geoip.Resolver
	LookupTimeout time.Duration
	Registry      *Registry
	Logger        *zap.SugaredLogger
}

// Stats is a point in time view of the pipeline counters.
// Stats 是流水线计数器的快照。
type Stats struct {
	State        string     `json:"state"`
	SourcePath   string     `json:"source_path"`
	Filter       string     `json:"filter,omitempty"`
	Lines        uint64     `json:"lines"`
	DecodeErrors uint64     `json:"decode_errors"`
	Filtered     uint64     `json:"filtered"`
	Broadcasts   uint64     `json:"broadcasts"`
	Deliveries   uint64     `json:"deliveries"`
	Failures     uint64     `json:"failures"`
	Pruned       uint64     `json:"pruned"`
	Subscribers  int        `json:"subscribers"`
	LastEvent    *time.Time `json:"last_event,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Pipeline drives tail, decode, enrich and broadcast for one source, one event at a time.
// Pipeline 针对单个源逐条驱动 tail、解码、富化和广播。
type Pipeline struct {
	opts        Options
	enricher    *Enricher
	broadcaster *Broadcaster
	registry    *Registry
	log         *zap.SugaredLogger

	state  atomic.Int32
	filter atomic.Pointer[Filter]

	lines        atomic.Uint64
	decodeErrors atomic.Uint64
	filtered     atomic.Uint64
	broadcasts   atomic.Uint64
	deliveries   atomic.Uint64
	failures     atomic.Uint64
	pruned       atomic.Uint64
	lastEvent    atomic.Int64

	errMu sync.Mutex
	err   error
}

// NewPipeline creates a pipeline in the STARTING state.
// NewPipeline 创建处于 STARTING 状态的流水线。
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	p := &Pipeline{
		opts:        opts,
		enricher:    NewEnricher(opts.Resolver, opts.LookupTimeout, opts.Logger),
		broadcaster: NewBroadcaster(opts.Logger),
		registry:    opts.Registry,
		log:         opts.Logger,
	}
	p.filter.Store(opts.Filter)
	p.setState(StateStarting)
	return p
}

// Run follows the source until ctx is cancelled (returns nil, STOPPED) or the source fails (returns the error, FATAL).
// Run 持续跟踪源，直到 ctx 取消（返回 nil，STOPPED）或源失败（返回错误，FATAL）。
func (p *Pipeline) Run(ctx context.Context) error {
	p.setState(StateStarting)

	t, err := OpenTailer(ctx, p.opts.SourcePath, TailerOptions{
		PollInterval: p.opts.PollInterval,
		ReOpen:       p.opts.ReOpen,
		Logger:       p.log,
	})
	if err != nil {
		return p.finish(ctx, err)
	}
	defer t.Close()

	if t.Created() {
		p.log.Infof("[INFO] Created empty traffic log %s", t.Path())
	}
	p.log.Infof("[START] Following %s (poll %s, reopen %v)", t.Path(), p.pollInterval(), p.opts.ReOpen)
	p.setState(StateRunning)

	for {
		line, err := t.Next(ctx)
		if err != nil {
			return p.finish(ctx, err)
		}
		p.process(ctx, line)
	}
}

func (p *Pipeline) pollInterval() time.Duration {
	if p.opts.PollInterval > 0 {
		return p.opts.PollInterval
	}
	return DefaultPollInterval
}

// finish maps the terminal error to STOPPED or FATAL.
func (p *Pipeline) finish(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		p.setState(StateStopped)
		p.log.Infof("[STOP] Pipeline stopped")
		return nil
	}
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
	p.setState(StateFatal)
	p.log.Errorw("Pipeline failed", "source", p.opts.SourcePath, "error", err)
	return err
}

func (p *Pipeline) process(ctx context.Context, line string) {
	p.lines.Add(1)
	metrics.LinesTotal.Inc()

	ev, err := Decode(line)
	if err != nil {
		p.decodeErrors.Add(1)
		metrics.DecodeErrorsTotal.Inc()
		p.log.Warnw("Skipping malformed record", "line", truncate(line, maxLoggedLine), "error", err)
		return
	}

	enriched := p.enricher.Enrich(ctx, ev)

	if f := p.filter.Load(); f != nil && !f.Match(enriched) {
		p.filtered.Add(1)
		metrics.FilteredTotal.Inc()
		return
	}

	res := p.broadcaster.Broadcast(ctx, enriched, p.registry.Snapshot())
	if n := p.registry.Prune(res.Failed); n > 0 {
		p.pruned.Add(uint64(n))
		metrics.SubscribersPrunedTotal.Add(float64(n))
		p.log.Infof("[PRUNE] Removed %d subscriber(s) after failed delivery", n)
	}

	now := time.Now()
	p.broadcasts.Add(1)
	p.deliveries.Add(uint64(res.Delivered))
	p.failures.Add(uint64(len(res.Failed)))
	p.lastEvent.Store(now.UnixNano())
	metrics.EventsTotal.WithLabelValues(attackLabel(ev)).Inc()
	metrics.LastEventTimestamp.Set(float64(now.Unix()))
}

func attackLabel(ev *TrafficEvent) string {
	if ev.AttackType == nil || *ev.AttackType == "" {
		return "unknown"
	}
	return truncate(*ev.AttackType, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	metrics.SetPipelineState(s.String(), States)
}

// State returns the current lifecycle state. It is safe to call from any goroutine.
// State 返回当前状态，可在任意 goroutine 中调用。
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Err returns the error that made the pipeline FATAL, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Registry returns the subscriber registry fed by this pipeline.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// SetFilter replaces the global filter; nil accepts every event.
// SetFilter 替换全局过滤器，nil 表示接受所有事件。
func (p *Pipeline) SetFilter(f *Filter) {
	p.filter.Store(f)
}

// Stats returns the current counters.
// Stats 返回当前计数器。
func (p *Pipeline) Stats() Stats {
	s := Stats{
		State:        p.State().String(),
		SourcePath:   p.opts.SourcePath,
		Filter:       p.filter.Load().String(),
		Lines:        p.lines.Load(),
		DecodeErrors: p.decodeErrors.Load(),
		Filtered:     p.filtered.Load(),
		Broadcasts:   p.broadcasts.Load(),
		Deliveries:   p.deliveries.Load(),
		Failures:     p.failures.Load(),
		Pruned:       p.pruned.Load(),
		Subscribers:  p.registry.Len(),
	}
	if ns := p.lastEvent.Load(); ns > 0 {
		t := time.Unix(0, ns)
		s.LastEvent = &t
	}
	if err := p.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
