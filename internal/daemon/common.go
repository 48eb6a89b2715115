package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
	"go.uber.org/zap"
)

// managePidFile writes the current PID to path. A file left by a dead process is replaced.
// managePidFile 将当前 PID 写入 path，已退出进程遗留的文件会被替换。
func managePidFile(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && processAlive(pid) {
			return fmt.Errorf("%w: PID file %s names process %d which is running", apperrors.ErrDaemonAlreadyRunning, path, pid)
		}
	}
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func removePidFile(path string, log *zap.SugaredLogger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("⚠️  Failed to remove PID file: %v", err)
	}
}

// startPprof serves the profiling endpoints under /debug on port.
// startPprof 在 port 上的 /debug 下提供性能分析端点。
func startPprof(port int, log *zap.SugaredLogger) (*http.Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("pprof listen: %w", err)
	}
	r := chi.NewRouter()
	r.Mount("/debug", middleware.Profiler())
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	log.Infof("📊 Pprof enabled on %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("❌ Pprof server error: %v", err)
		}
	}()
	return srv, nil
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
