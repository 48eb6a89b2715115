package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/netxfw/netxmap/internal/utils/fileutil"
	"github.com/nxadm/tail"
	"github.com/nxadm/tail/watch"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often the source is checked for new data.
const DefaultPollInterval = 250 * time.Millisecond

// nxadm/tail reads its poll interval from a package global without locking, so it is
// written once per process: the first tailer fixes it and later ones reuse it.
var (
	pollMu  sync.Mutex
	pollSet bool
)

// effectivePollInterval fixes the process wide poll interval on first use and returns it.
func effectivePollInterval(want time.Duration) time.Duration {
	pollMu.Lock()
	defer pollMu.Unlock()
	if !pollSet {
		watch.POLL_DURATION = want
		pollSet = true
	}
	return watch.POLL_DURATION
}

// TailerOptions tunes a Tailer.
// TailerOptions 调整 Tailer 的行为。
type TailerOptions struct {
	// PollInterval bounds the latency between an append and its delivery.
	PollInterval time.Duration
	// ReOpen follows the path across delete and recreate. Without it a deleted source is fatal.
	ReOpen bool
	Logger *zap.SugaredLogger
}

// Tailer yields complete lines appended to a file after it was opened.
// Tailer 返回文件打开后追加的完整行。
type Tailer struct {
	path     string
	opts     TailerOptions
	interval time.Duration
	log      *zap.SugaredLogger
	created  bool

	mu sync.Mutex
	t  *tail.Tail
}

// OpenTailer starts following path from its current end. A missing file is created empty first.
// OpenTailer 从当前文件末尾开始跟踪 path，文件不存在时先创建空文件。
func OpenTailer(ctx context.Context, path string, opts TailerOptions) (*Tailer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created, err := fileutil.EnsureFile(path)
	if err != nil {
		return nil, fmt.Errorf("prepare source %s: %w", path, err)
	}
	// Measure the end synchronously so nothing appended after this call is missed.
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", path, err)
	}

	want := opts.PollInterval
	if want <= 0 {
		want = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	tl := &Tailer{path: path, opts: opts, log: log, created: created}
	tl.interval = effectivePollInterval(want)
	if tl.interval != want {
		log.Warnf("⚠️  Poll interval %s requested for %s, using the process wide %s", want, path, tl.interval)
	}

	t, err := tl.start(info.Size())
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", path, err)
	}
	tl.t = t
	return tl, nil
}

func (t *Tailer) start(offset int64) (*tail.Tail, error) {
	cfg := tail.Config{
		Location:      &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Follow:        true,
		ReOpen:        t.opts.ReOpen,
		MustExist:     true,
		Poll:          true,
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	}
	if t.opts.Logger != nil {
		if std, err := zap.NewStdLogAt(t.opts.Logger.Desugar().Named("tail"), zap.DebugLevel); err == nil {
			cfg.Logger = std
		}
	}
	return tail.TailFile(t.path, cfg)
}

// PollInterval returns the interval the source is actually polled at.
func (t *Tailer) PollInterval() time.Duration {
	return t.interval
}

// Created reports whether OpenTailer had to create the source file.
func (t *Tailer) Created() bool {
	return t.created
}

// Path returns the followed file.
func (t *Tailer) Path() string {
	return t.path
}

// Next blocks until the next non-blank line and returns it trimmed.
// It returns ctx.Err() on cancellation and an ErrSourceClosed error when the source cannot be followed anymore.
// With ReOpen set, a source that vanished before the follower settled is waited for and read from its start.
// Next 阻塞直到下一行非空行并返回去除空白后的内容。
// 取消时返回 ctx.Err()，无法继续跟踪时返回 ErrSourceClosed。
// 设置 ReOpen 时，若源文件在跟踪稳定前消失，会等待其重建并从头读取。
func (t *Tailer) Next(ctx context.Context) (string, error) {
	for {
		cur := t.current()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-cur.Lines:
			if !ok {
				cause, err := exitCause(ctx, cur)
				if err != nil {
					return "", err
				}
				if t.opts.ReOpen && errors.Is(cause, fs.ErrNotExist) {
					if err := t.reopen(ctx); err != nil {
						return "", err
					}
					continue
				}
				if cause != nil {
					return "", fmt.Errorf("%w: %s: %v", ErrSourceClosed, t.path, cause)
				}
				return "", fmt.Errorf("%w: %s was removed", ErrSourceClosed, t.path)
			}
			if line.Err != nil {
				return "", fmt.Errorf("%w: read %s: %v", ErrSourceClosed, t.path, line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			return text, nil
		}
	}
}

func (t *Tailer) current() *tail.Tail {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.t
}

// exitCause waits for the follower to finish and returns why it stopped.
func exitCause(ctx context.Context, cur *tail.Tail) (cause, cancelled error) {
	// Lines is closed just before the tail records its exit reason.
	select {
	case <-cur.Dead():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return cur.Err(), nil
}

// reopen waits for the path to exist again and follows it from the start.
func (t *Tailer) reopen(ctx context.Context) error {
	t.log.Warnf("⚠️  Source %s disappeared, waiting for it to be recreated", t.path)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(t.path); err == nil {
			nt, err := t.start(0)
			if err == nil {
				t.mu.Lock()
				t.t = nt
				t.mu.Unlock()
				t.log.Infof("🔄 Following recreated source %s", t.path)
				return nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: reopen %s: %v", ErrSourceClosed, t.path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: stat %s: %v", ErrSourceClosed, t.path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops following the file.
// Close 停止跟踪文件。
func (t *Tailer) Close() error {
	return t.current().Stop()
}
