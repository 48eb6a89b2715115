// Package stream serves the enriched event feed to WebSocket viewers.
// Package stream 通过 WebSocket 向查看者推送富化事件流。
package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/netxfw/netxmap/internal/feed"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull means the viewer does not keep up with the feed.
	// ErrQueueFull 表示查看者跟不上事件流速度。
	ErrQueueFull = errors.New("send queue full")
	// ErrClosed means the connection is gone.
	// ErrClosed 表示连接已关闭。
	ErrClosed = errors.New("connection closed")
)

// maxInboundMessage caps what a viewer may send; inbound data is discarded anyway.
const maxInboundMessage = 4096

// Conn is a WebSocket viewer registered as a feed.Subscriber.
// Send only enqueues; a dedicated goroutine writes the queue in order.
// Conn 是注册为 feed.Subscriber 的 WebSocket 查看者。
// Send 只负责入队，由专门的 goroutine 按顺序写出。
type Conn struct {
	id     string
	ws     *websocket.Conn
	filter *feed.Filter
	queue  chan []byte
	done   chan struct{}
	once   sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
	log          *zap.SugaredLogger
}

func newConn(id string, ws *websocket.Conn, filter *feed.Filter, opts Options, log *zap.SugaredLogger) *Conn {
	return &Conn{
		id:           id,
		ws:           ws,
		filter:       filter,
		queue:        make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		log:          log,
	}
}

// ID implements feed.Subscriber.
func (c *Conn) ID() string {
	return c.id
}

// Send implements feed.Subscriber. It never blocks.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.queue <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Accept implements feed.Filterer.
func (c *Conn) Accept(e *feed.EnrichedEvent) bool {
	return c.filter.Match(e)
}

// Close implements feed.Subscriber. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(c.writeTimeout))
		err = c.ws.Close()
	})
	return err
}

// writeLoop drains the queue until the connection closes or a write fails.
func (c *Conn) writeLoop(onError func(error)) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				onError(err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				onError(err)
				return
			}
		}
	}
}

// readLoop discards inbound messages so control frames keep flowing. It returns when the viewer leaves.
func (c *Conn) readLoop() {
	c.ws.SetReadLimit(maxInboundMessage)
	wait := 2*c.pingInterval + c.writeTimeout
	_ = c.ws.SetReadDeadline(time.Now().Add(wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debugw("Viewer read failed", "subscriber", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
	}
}
