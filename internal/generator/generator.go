// Package generator writes synthetic attack traffic in the feed's line format.
// Package generator 以事件流的行格式写入模拟攻击流量。
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/netip"
	"os"
	"time"

	"github.com/netxfw/netxmap/internal/utils/iputil"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
)

// AttackTypes are the attack labels the generator draws from.
var AttackTypes = []string{"UDP_FLOOD", "SYN_FLOOD", "SLOWLORIS", "ICMP_FLOOD"}

// Protocols are the transport labels the generator draws from.
var Protocols = []string{"TCP", "UDP"}

const (
	minPort       = 1024
	maxPort       = 65535
	minPacketSize = 100
	maxPacketSize = 1500
	minMagnitude  = 1
	maxMagnitude  = 100

	// DefaultMinDelay and DefaultMaxDelay bound the pause between two records.
	DefaultMinDelay = 100 * time.Millisecond
	DefaultMaxDelay = 500 * time.Millisecond
)

// Packet is one generated traffic record.
// Packet 是一条生成的流量记录。
type Packet struct {
	Timestamp       float64 `json:"timestamp"`
	SourceIP        string  `json:"source_ip"`
	DestinationIP   string  `json:"destination_ip"`
	SourcePort      int     `json:"source_port"`
	DestinationPort int     `json:"destination_port"`
	Protocol        string  `json:"protocol"`
	PacketSize      int     `json:"packet_size"`
	AttackType      string  `json:"attack_type"`
	Magnitude       int     `json:"magnitude"`
}

// Options configures a Generator. Zero delays mean no pause between records.
// Options 配置 Generator，延迟为零表示记录之间不暂停。
type Options struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	// Rand defaults to a randomly seeded source.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

// Generator produces random Packets.
type Generator struct {
	opts Options
	rnd  *rand.Rand
}

// New creates a Generator.
func New(opts Options) (*Generator, error) {
	if opts.MinDelay < 0 || opts.MaxDelay < opts.MinDelay {
		return nil, apperrors.NewConfigError("delay", fmt.Sprintf("%s..%s", opts.MinDelay, opts.MaxDelay))
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{opts: opts, rnd: opts.Rand}, nil
}

// Next returns a new random packet stamped with the current time.
// Next 返回一个带有当前时间戳的随机数据包。
func (g *Generator) Next() Packet {
	now := g.opts.Now()
	return Packet{
		Timestamp:       float64(now.UnixNano()) / 1e9,
		SourceIP:        g.publicIPv4(),
		DestinationIP:   g.publicIPv4(),
		SourcePort:      g.between(minPort, maxPort),
		DestinationPort: g.between(minPort, maxPort),
		Protocol:        Protocols[g.rnd.IntN(len(Protocols))],
		PacketSize:      g.between(minPacketSize, maxPacketSize),
		AttackType:      AttackTypes[g.rnd.IntN(len(AttackTypes))],
		Magnitude:       g.between(minMagnitude, maxMagnitude),
	}
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

// publicIPv4 draws addresses until one is globally routable, so records can be located.
func (g *Generator) publicIPv4() string {
	for {
		v := g.rnd.Uint32()
		addr := netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
		if iputil.IsPublic(addr) {
			return addr.String()
		}
	}
}

func (g *Generator) delay() time.Duration {
	lo, hi := g.opts.MinDelay, g.opts.MaxDelay
	if hi <= 0 {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(g.rnd.Int64N(int64(hi-lo)))
}

// Write emits count records to w, one JSON object per line, pausing between them.
// A count of zero or less writes until ctx is cancelled. It returns how many records were written.
// Write 向 w 写入 count 条记录（每行一个 JSON 对象），记录之间会暂停。
// count 小于等于零时持续写入直到 ctx 取消。返回已写入的记录数。
func (g *Generator) Write(ctx context.Context, w io.Writer, count int) (int, error) {
	enc := json.NewEncoder(w)
	written := 0
	for count <= 0 || written < count {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := enc.Encode(g.Next()); err != nil {
			return written, fmt.Errorf("write record: %w", err)
		}
		written++

		if count > 0 && written == count {
			break
		}
		if err := sleep(ctx, g.delay()); err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteFile writes count records to path, replacing its contents.
// With continuous set it appends until ctx is cancelled instead.
// WriteFile 向 path 写入 count 条记录并覆盖原内容；continuous 为真时改为追加直到 ctx 取消。
func (g *Generator) WriteFile(ctx context.Context, path string, count int, continuous bool) (int, error) {
	if path == "" {
		return 0, apperrors.ErrInvalidFilePath
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if continuous {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		count = 0
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	n, werr := g.Write(ctx, f, count)
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = cerr
	}
	return n, werr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
