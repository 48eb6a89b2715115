package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netxfw/netxmap/internal/metrics"
	"go.uber.org/zap"
)

// Result summarizes one broadcast pass.
// Result 汇总一次广播的结果。
type Result struct {
	Attempted int
	Delivered int
	Filtered  int
	Failed    []string
}

// Broadcaster delivers one event to a set of subscribers.
// Broadcaster 将一个事件分发给一组订阅者。
type Broadcaster struct {
	log *zap.SugaredLogger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(log *zap.SugaredLogger) *Broadcaster {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Broadcaster{log: log}
}

// Broadcast encodes e once and sends it to every subscriber in subs.
// A failing subscriber is recorded in Result.Failed and never stops the pass.
// Broadcast 将 e 编码一次并发送给 subs 中的每个订阅者。
// 失败的订阅者记录在 Result.Failed 中，不会中断本轮分发。
func (b *Broadcaster) Broadcast(ctx context.Context, e *EnrichedEvent, subs []Subscriber) Result {
	var res Result
	if len(subs) == 0 {
		return res
	}

	start := time.Now()
	defer func() {
		metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(e)
	if err != nil {
		// Every field is a plain pointer; this cannot happen with a well formed event.
		b.log.Errorw("Failed to encode event", "error", err)
		return res
	}

	for _, s := range subs {
		if ctx.Err() != nil {
			break
		}
		if f, ok := s.(Filterer); ok && !f.Accept(e) {
			res.Filtered++
			metrics.DeliveriesTotal.WithLabelValues("filtered").Inc()
			continue
		}
		res.Attempted++
		if err := s.Send(payload); err != nil {
			res.Failed = append(res.Failed, s.ID())
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			b.log.Debugw("Delivery failed", "subscriber", s.ID(), "error", err)
			continue
		}
		res.Delivered++
		metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
	}
	return res
}
