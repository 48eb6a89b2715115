package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/netxfw/netxmap/internal/feed"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// StatusSource reports the pipeline status served by /healthz and /api/stats.
// StatusSource 提供 /healthz 与 /api/stats 所需的流水线状态。
type StatusSource interface {
	State() feed.State
	Stats() feed.Stats
}

// Server is the HTTP front end: viewer WebSocket, health, stats and metrics.
// Server 是 HTTP 前端：查看者 WebSocket、健康检查、统计和指标。
type Server struct {
	addr   string
	router *chi.Mux
	source StatusSource
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	running  bool
}

// NewServer builds the router. stream may be nil, in which case /ws is not mounted.
// NewServer 构建路由。stream 为 nil 时不挂载 /ws。
func NewServer(addr string, source StatusSource, stream http.Handler, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		source: source,
		log:    log,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger(log))
	s.routes(stream)
	return s
}

func (s *Server) routes(stream http.Handler) {
	if stream != nil {
		s.router.Method(http.MethodGet, "/ws", stream)
	}
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Handler returns the router, for embedding or tests.
// Handler 返回路由器，用于嵌入或测试。
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listen address and serves in the background.
// Bind errors are returned directly.
// Start 绑定监听地址并在后台提供服务，绑定错误直接返回。
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.server = srv
	s.listener = ln
	s.running = true

	go func() {
		s.log.Infof("🌐 HTTP server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("❌ HTTP server error: %v", err)
		}
		s.serveDone(srv)
	}()
	return nil
}

// Addr returns the bound address once started, the configured one otherwise.
// Addr 启动后返回实际绑定地址，否则返回配置地址。
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// IsRunning reports whether the server is serving.
// IsRunning 返回服务器是否正在服务。
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// serveDone clears the running flag unless srv was already replaced by a later Start.
func (s *Server) serveDone(srv *http.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == srv {
		s.running = false
	}
}

// Stop gracefully shuts the server down.
// Hijacked WebSocket connections are not tracked here; close them through the registry.
// Stop 优雅关闭服务器。被劫持的 WebSocket 连接需通过注册表关闭。
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.running = false
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// requestLogger logs one debug line per request.
func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
