package feed

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterEnv is the environment filter expressions are evaluated against.
// Unknown values are zero: "" for strings, 0 for numbers.
// FilterEnv 是过滤表达式的求值环境，未知值为零值。
type FilterEnv struct {
	Timestamp      float64 `expr:"timestamp"`
	AttackType     string  `expr:"attack_type"`
	Magnitude      float64 `expr:"magnitude"`
	SourceIP       string  `expr:"source_ip"`
	DestinationIP  string  `expr:"destination_ip"`
	SrcLat         float64 `expr:"src_lat"`
	SrcLon         float64 `expr:"src_lon"`
	SrcCountry     string  `expr:"src_country"`
	DstLat         float64 `expr:"dst_lat"`
	DstLon         float64 `expr:"dst_lon"`
	DstCountry     string  `expr:"dst_country"`
	HasSrcLocation bool    `expr:"has_src_location"`
	HasDstLocation bool    `expr:"has_dst_location"`
}

// Filter is a compiled boolean expression over the broadcast payload, e.g.
// `magnitude >= 50 && attack_type in ["SYN_FLOOD", "UDP_FLOOD"]`.
// Filter 是基于广播负载的已编译布尔表达式。
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles src. An empty source yields a nil filter that accepts everything.
// CompileFilter 编译 src，空表达式返回接受所有事件的 nil 过滤器。
func CompileFilter(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return &Filter{source: src, program: program}, nil
}

// Match reports whether e passes the filter. Evaluation errors reject the event.
// Match 判断 e 是否通过过滤，求值出错时拒绝该事件。
func (f *Filter) Match(e *EnrichedEvent) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, newFilterEnv(e))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// String returns the expression source.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

func newFilterEnv(e *EnrichedEvent) FilterEnv {
	p := e.Payload()
	return FilterEnv{
		Timestamp:      deref(p.Timestamp),
		AttackType:     deref(p.AttackType),
		Magnitude:      deref(p.Magnitude),
		SourceIP:       deref(p.SourceIP),
		DestinationIP:  deref(p.DestinationIP),
		SrcLat:         deref(p.SrcLat),
		SrcLon:         deref(p.SrcLon),
		SrcCountry:     deref(p.SrcCountry),
		DstLat:         deref(p.DstLat),
		DstLon:         deref(p.DstLon),
		DstCountry:     deref(p.DstCountry),
		HasSrcLocation: e.Src != nil,
		HasDstLocation: e.Dst != nil,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
