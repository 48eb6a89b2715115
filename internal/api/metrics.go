package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewMetricsServer creates a server exposing only /metrics, for a dedicated metrics port.
// NewMetricsServer 创建仅暴露 /metrics 的服务器，用于独立的指标端口。
func NewMetricsServer(addr string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		log:    log,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return s
}
