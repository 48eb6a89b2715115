package feed

import (
	"testing"

	"github.com/netxfw/netxmap/internal/geoip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompileFilter tests expression compilation
// TestCompileFilter 测试表达式编译
func TestCompileFilter(t *testing.T) {
	f, err := CompileFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Match(&EnrichedEvent{Event: &TrafficEvent{}}))
	assert.Equal(t, "", f.String())

	_, err = CompileFilter("magnitude >")
	assert.Error(t, err)
	_, err = CompileFilter(`attack_type`)
	assert.Error(t, err)
	_, err = CompileFilter(`unknown_field > 1`)
	assert.Error(t, err)

	f, err = CompileFilter(` magnitude >= 50 `)
	require.NoError(t, err)
	assert.Equal(t, "magnitude >= 50", f.String())
}

// TestFilter_Match tests evaluation against enriched events
// TestFilter_Match 测试对富化事件求值
func TestFilter_Match(t *testing.T) {
	us := "United States"
	e := &EnrichedEvent{
		Event: &TrafficEvent{AttackType: strPtr("SYN_FLOOD"), Magnitude: floatPtr(75), SourceIP: strPtr("8.8.8.8")},
		Src:   &geoip.Location{Country: &us},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`magnitude >= 50`, true},
		{`magnitude < 50`, false},
		{`attack_type in ["SYN_FLOOD", "UDP_FLOOD"]`, true},
		{`src_country == "United States" && has_src_location`, true},
		{`has_dst_location`, false},
		{`dst_country == ""`, true},
		{`source_ip startsWith "8."`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := CompileFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(e))
		})
	}
}
