package feed

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var errSendFailed = errors.New("send failed")

// recorder is an in-memory subscriber
type recorder struct {
	id     string
	fail   atomic.Bool
	closed atomic.Int32

	mu   sync.Mutex
	msgs [][]byte
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(payload []byte) error {
	if r.fail.Load() || r.closed.Load() > 0 {
		return errSendFailed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, append([]byte(nil), payload...))
	return nil
}

func (r *recorder) Close() error {
	r.closed.Add(1)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) payloads(t *testing.T) []map[string]any {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, 0, len(r.msgs))
	for _, m := range r.msgs {
		var v map[string]any
		require.NoError(t, json.Unmarshal(m, &v))
		out = append(out, v)
	}
	return out
}

// filteringRecorder only accepts events matching its filter
type filteringRecorder struct {
	*recorder
	filter *Filter
}

func (f *filteringRecorder) Accept(e *EnrichedEvent) bool {
	return f.filter.Match(e)
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
