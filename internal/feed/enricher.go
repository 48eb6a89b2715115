package feed

import (
	"context"
	"errors"
	"time"

	"github.com/netxfw/netxmap/internal/geoip"
	"github.com/netxfw/netxmap/internal/metrics"
	"github.com/netxfw/netxmap/internal/utils/iputil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLookupTimeout bounds a single location lookup.
const DefaultLookupTimeout = 200 * time.Millisecond

// Enricher attaches source and destination locations to events.
// Enricher 为事件附加源和目的位置。
type Enricher struct {
	resolver geoip.Resolver
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewEnricher creates an Enricher. A nil resolver never finds a location.
// NewEnricher 创建 Enricher，nil 解析器不会返回任何位置。
func NewEnricher(resolver geoip.Resolver, timeout time.Duration, log *zap.SugaredLogger) *Enricher {
	if resolver == nil {
		resolver = geoip.NopResolver{}
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Enricher{resolver: resolver, timeout: timeout, log: log}
}

// Enrich resolves both endpoints concurrently. It never fails: unknown locations are left nil.
// Enrich 并发解析两端地址，不会失败，未知位置保持为 nil。
func (e *Enricher) Enrich(ctx context.Context, ev *TrafficEvent) *EnrichedEvent {
	out := &EnrichedEvent{Event: ev}

	var g errgroup.Group
	g.Go(func() error {
		out.Src = e.locate(ctx, "src", ev.SourceIP)
		return nil
	})
	g.Go(func() error {
		out.Dst = e.locate(ctx, "dst", ev.DestinationIP)
		return nil
	})
	_ = g.Wait()

	return out
}

type lookupResult struct {
	loc geoip.Location
	err error
}

func (e *Enricher) locate(ctx context.Context, side string, ip *string) *geoip.Location {
	if ip == nil {
		metrics.LookupsTotal.WithLabelValues(side, metrics.LookupSkipped).Inc()
		return nil
	}
	addr, err := iputil.ParseAddr(*ip)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues(side, metrics.LookupSkipped).Inc()
		return nil
	}

	lctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		loc, err := e.resolver.Resolve(lctx, addr)
		done <- lookupResult{loc: loc, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-lctx.Done():
		res.err = lctx.Err()
	}
	metrics.LookupDuration.Observe(time.Since(start).Seconds())

	switch {
	case res.err == nil && !res.loc.IsZero():
		metrics.LookupsTotal.WithLabelValues(side, metrics.LookupHit).Inc()
		loc := res.loc
		return &loc
	case res.err == nil, errors.Is(res.err, geoip.ErrNotFound):
		metrics.LookupsTotal.WithLabelValues(side, metrics.LookupMiss).Inc()
	default:
		metrics.LookupsTotal.WithLabelValues(side, metrics.LookupError).Inc()
		e.log.Debugw("Location lookup failed", "ip", addr.String(), "side", side, "error", res.err)
	}
	return nil
}
