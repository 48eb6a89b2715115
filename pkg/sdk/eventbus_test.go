package sdk

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEventBus_PublishSubscribe tests delivery to matching handlers only
// TestEventBus_PublishSubscribe 测试仅向匹配的处理函数投递
func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	var reloads, fatals atomic.Int32
	var got atomic.Value

	bus.Subscribe(EventTypeConfigReload, func(e Event) {
		reloads.Add(1)
		got.Store(e)
	})
	bus.Subscribe(EventTypePipelineFatal, func(e Event) { fatals.Add(1) })

	bus.Publish(NewEvent(EventTypeConfigReload, "daemon", "payload"))
	bus.Wait()

	assert.Equal(t, int32(1), reloads.Load())
	assert.Equal(t, int32(0), fatals.Load())
	e := got.Load().(Event)
	assert.Equal(t, "daemon", e.Source)
	assert.Equal(t, "payload", e.Payload)
	assert.NotZero(t, e.Timestamp)
}

// TestEventBus_Unsubscribe tests that removed handlers are no longer called
// TestEventBus_Unsubscribe 测试移除的处理函数不再被调用
func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	var a, b atomic.Int32

	unsubA := bus.Subscribe(EventTypeConfigReload, func(Event) { a.Add(1) })
	bus.Subscribe(EventTypeConfigReload, func(Event) { b.Add(1) })

	unsubA()
	unsubA()
	bus.Publish(NewEvent(EventTypeConfigReload, "test", nil))
	bus.Wait()

	assert.Equal(t, int32(0), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

// TestEventBus_NoSubscribers tests publishing without handlers
// TestEventBus_NoSubscribers 测试无处理函数时发布
func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() {
		bus.Publish(NewEvent(EventTypePipelineFatal, "test", nil))
		bus.Wait()
	})
}
