// Package fmtutil provides formatting helpers for command output.
// Package fmtutil 提供命令输出使用的格式化工具。
package fmtutil

import (
	"fmt"
	"strings"
	"time"
)

var numberUnits = []struct {
	size   float64
	suffix string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "K"},
}

// FormatNumber formats counters with K/M/G suffixes.
// FormatNumber 使用 K/M/G 后缀格式化计数器。
func FormatNumber(n uint64) string {
	for _, u := range numberUnits {
		if float64(n) >= u.size {
			return fmt.Sprintf("%.2f%s", float64(n)/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%d", n)
}

// FormatDuration renders d as "1d 2h 3m 4s", omitting zero parts.
// Durations under a second use time.Duration's own format.
// FormatDuration 将 d 格式化为 "1d 2h 3m 4s"，省略为零的部分；不足一秒时使用 time.Duration 自身格式。
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	parts := []struct {
		n    int64
		unit string
	}{
		{int64(d / (24 * time.Hour)), "d"},
		{int64(d/time.Hour) % 24, "h"},
		{int64(d/time.Minute) % 60, "m"},
		{int64(d/time.Second) % 60, "s"},
	}
	var out []string
	for _, p := range parts {
		if p.n > 0 {
			out = append(out, fmt.Sprintf("%d%s", p.n, p.unit))
		}
	}
	return strings.Join(out, " ")
}
