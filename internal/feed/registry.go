package feed

import (
	"fmt"
	"sync"
)

// Registry is the set of live subscribers. It is safe for concurrent use.
// Registry 是当前订阅者集合，并发安全。
type Registry struct {
	mu    sync.Mutex
	order []Subscriber
	index map[string]int

	// OnChange, when set, is called with the new size after every membership change.
	OnChange func(n int)
}

// NewRegistry creates an empty registry.
// NewRegistry 创建空的注册表。
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add registers s. A subscriber whose ID is already present is rejected.
// Add 注册 s，ID 已存在时拒绝。
func (r *Registry) Add(s Subscriber) error {
	r.mu.Lock()
	if _, ok := r.index[s.ID()]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSubscriber, s.ID())
	}
	r.index[s.ID()] = len(r.order)
	r.order = append(r.order, s)
	n := len(r.order)
	r.mu.Unlock()

	r.changed(n)
	return nil
}

// Remove unregisters and closes the subscriber with id. Removing an unknown id is a no-op.
// Remove 注销并关闭指定 id 的订阅者，未知 id 不做任何操作。
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.removeLocked(id)
	n := len(r.order)
	r.mu.Unlock()

	if !ok {
		return false
	}
	_ = s.Close()
	r.changed(n)
	return true
}

// Prune removes every id in ids and returns how many were present.
// Prune 移除 ids 中的所有订阅者并返回实际移除的数量。
func (r *Registry) Prune(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	r.mu.Lock()
	removed := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.removeLocked(id); ok {
			removed = append(removed, s)
		}
	}
	n := len(r.order)
	r.mu.Unlock()

	for _, s := range removed {
		_ = s.Close()
	}
	if len(removed) > 0 {
		r.changed(n)
	}
	return len(removed)
}

func (r *Registry) removeLocked(id string) (Subscriber, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	s := r.order[i]
	copy(r.order[i:], r.order[i+1:])
	r.order[len(r.order)-1] = nil
	r.order = r.order[:len(r.order)-1]
	delete(r.index, id)
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].ID()] = j
	}
	return s, true
}

// Snapshot returns the current subscribers in registration order.
// Snapshot 按注册顺序返回当前订阅者的副本。
func (r *Registry) Snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Subscriber, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// CloseAll removes and closes every subscriber.
// CloseAll 移除并关闭所有订阅者。
func (r *Registry) CloseAll() {
	r.mu.Lock()
	subs := r.order
	r.order = nil
	r.index = make(map[string]int)
	r.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	r.changed(0)
}

func (r *Registry) changed(n int) {
	if r.OnChange != nil {
		r.OnChange(n)
	}
}
