package stream

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/netxfw/netxmap/internal/feed"
	"go.uber.org/zap"
)

// Options tunes viewer connections.
// Options 调整查看者连接。
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	AllowedOrigins []string
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
}

// Handler upgrades requests to WebSocket viewers and registers them.
// The optional "filter" query parameter is an expression applied to each event for that viewer only.
// Handler 将请求升级为 WebSocket 查看者并注册。
// 可选的 "filter" 查询参数仅对该查看者的事件生效。
type Handler struct {
	registry *feed.Registry
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

// NewHandler creates a Handler feeding viewers registered in registry.
// NewHandler 创建向 registry 中查看者推送事件的 Handler。
func NewHandler(registry *feed.Registry, opts Options, log *zap.SugaredLogger) *Handler {
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := &Handler{registry: registry, opts: opts, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeHTTP blocks for the lifetime of the viewer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := feed.CompileFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.log.Debugw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(uuid.NewString(), ws, filter, h.opts, h.log)
	if err := h.registry.Add(c); err != nil {
		h.log.Warnw("Rejecting viewer", "error", err)
		_ = c.Close()
		return
	}
	h.log.Infow("Viewer connected", "subscriber", c.ID(), "remote", r.RemoteAddr, "filter", filter.String())

	go c.writeLoop(func(err error) {
		h.log.Debugw("Viewer write failed", "subscriber", c.ID(), "error", err)
		h.registry.Remove(c.ID())
	})
	c.readLoop()

	if h.registry.Remove(c.ID()) {
		h.log.Infow("Viewer disconnected", "subscriber", c.ID())
	}
}
