package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(mag float64) *EnrichedEvent {
	return &EnrichedEvent{Event: &TrafficEvent{AttackType: strPtr("UDP_FLOOD"), Magnitude: floatPtr(mag)}}
}

// TestBroadcast tests delivery to all subscribers
// TestBroadcast 测试向所有订阅者投递
func TestBroadcast(t *testing.T) {
	b := NewBroadcaster(nil)
	a, c := newRecorder("a"), newRecorder("c")

	res := b.Broadcast(context.Background(), sampleEvent(5), []Subscriber{a, c})
	assert.Equal(t, Result{Attempted: 2, Delivered: 2}, res)
	require.Equal(t, 1, a.count())
	assert.Equal(t, 5.0, a.payloads(t)[0]["magnitude"])
	assert.Equal(t, 1, c.count())
}

// TestBroadcast_FailureIsolation tests that one failure does not stop the pass
// TestBroadcast_FailureIsolation 测试单个失败不会中断分发
func TestBroadcast_FailureIsolation(t *testing.T) {
	b := NewBroadcaster(nil)
	a, bad, c := newRecorder("a"), newRecorder("bad"), newRecorder("c")
	bad.fail.Store(true)

	res := b.Broadcast(context.Background(), sampleEvent(1), []Subscriber{a, bad, c})
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []string{"bad"}, res.Failed)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, c.count())
}

// TestBroadcast_NoSubscribers tests the empty pass
// TestBroadcast_NoSubscribers 测试无订阅者时的分发
func TestBroadcast_NoSubscribers(t *testing.T) {
	res := NewBroadcaster(nil).Broadcast(context.Background(), sampleEvent(1), nil)
	assert.Zero(t, res.Attempted)
	assert.Empty(t, res.Failed)
}

// TestBroadcast_Filterer tests per subscriber filters
// TestBroadcast_Filterer 测试订阅者级过滤
func TestBroadcast_Filterer(t *testing.T) {
	f, err := CompileFilter("magnitude > 50")
	require.NoError(t, err)
	picky := &filteringRecorder{recorder: newRecorder("picky"), filter: f}
	all := newRecorder("all")
	b := NewBroadcaster(nil)

	res := b.Broadcast(context.Background(), sampleEvent(10), []Subscriber{picky, all})
	assert.Equal(t, Result{Attempted: 1, Delivered: 1, Filtered: 1}, res)

	res = b.Broadcast(context.Background(), sampleEvent(90), []Subscriber{picky, all})
	assert.Equal(t, Result{Attempted: 2, Delivered: 2}, res)

	assert.Equal(t, 1, picky.count())
	assert.Equal(t, 2, all.count())
}
