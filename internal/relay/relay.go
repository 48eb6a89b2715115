// Package relay republishes the enriched feed onto a NATS subject.
// Package relay 将富化事件流转发到 NATS 主题。
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/netxfw/netxmap/internal/metrics"
	"go.uber.org/zap"
)

// Message headers set on every relayed event.
const (
	HeaderAttackType = "x-attack-type"
	HeaderEventTS    = "x-event-ts"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("relay closed")

// MsgPublisher is the part of *nats.Conn the relay needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Connect dials the NATS server. The client reconnects forever and buffers while disconnected.
// Connect 连接 NATS 服务器，客户端会无限重连并在断线期间缓存消息。
func Connect(url, name string, log *zap.SugaredLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("[WARN]  NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("[OK] NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Subscriber publishes every payload it receives. It is a feed.Subscriber.
// Subscriber 发布收到的每个负载，实现 feed.Subscriber。
type Subscriber struct {
	pub     MsgPublisher
	subject string
	closed  atomic.Bool
}

// NewSubscriber creates a relay publishing to subject.
// NewSubscriber 创建发布到 subject 的转发订阅者。
func NewSubscriber(pub MsgPublisher, subject string) *Subscriber {
	return &Subscriber{pub: pub, subject: subject}
}

// ID implements feed.Subscriber.
func (s *Subscriber) ID() string {
	return "relay:" + s.subject
}

// Send implements feed.Subscriber.
func (s *Subscriber) Send(payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	msg := &nats.Msg{
		Subject: s.subject,
		Data:    payload,
		Header:  headersFor(payload),
	}
	if err := s.pub.PublishMsg(msg); err != nil {
		metrics.RelayPublishTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	metrics.RelayPublishTotal.WithLabelValues("published").Inc()
	return nil
}

// Close implements feed.Subscriber. The connection itself belongs to the caller.
func (s *Subscriber) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether the relay was removed from the feed.
func (s *Subscriber) Closed() bool {
	return s.closed.Load()
}

type headerFields struct {
	AttackType *string  `json:"attack_type"`
	Timestamp  *float64 `json:"timestamp"`
}

func headersFor(payload []byte) nats.Header {
	h := nats.Header{}
	var f headerFields
	if err := json.Unmarshal(payload, &f); err != nil {
		return h
	}
	if f.AttackType != nil {
		h.Set(HeaderAttackType, *f.AttackType)
	}
	if f.Timestamp != nil {
		h.Set(HeaderEventTS, strconv.FormatFloat(*f.Timestamp, 'f', -1, 64))
	}
	return h
}
