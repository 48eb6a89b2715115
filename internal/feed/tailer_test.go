package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPoll = 10 * time.Millisecond

func openTestTailer(t *testing.T, path string, reopen bool) *Tailer {
	t.Helper()
	tl, err := OpenTailer(context.Background(), path, TailerOptions{PollInterval: testPoll, ReOpen: reopen})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tl.Close() })
	return tl
}

func nextLine(t *testing.T, tl *Tailer) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	return line
}

// TestTailer_StartsAtEnd tests that existing content is not replayed
// TestTailer_StartsAtEnd 测试不会回放已有内容
func TestTailer_StartsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	appendLines(t, path, `{"old":1}`, `{"old":2}`)

	tl := openTestTailer(t, path, false)
	assert.False(t, tl.Created())

	appendLines(t, path, `{"new":1}`, "", "   ", `  {"new":2}  `)
	assert.Equal(t, `{"new":1}`, nextLine(t, tl))
	assert.Equal(t, `{"new":2}`, nextLine(t, tl))
}

// TestTailer_CreatesMissing tests that a missing source is created
// TestTailer_CreatesMissing 测试创建缺失的源文件
func TestTailer_CreatesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "traffic.jsonl")
	tl := openTestTailer(t, path, false)
	assert.True(t, tl.Created())
	assert.Equal(t, path, tl.Path())

	appendLines(t, path, `{"a":1}`)
	assert.Equal(t, `{"a":1}`, nextLine(t, tl))
}

// TestTailer_PartialLine tests that an incomplete line is held back
// TestTailer_PartialLine 测试不完整的行会被暂缓
func TestTailer_PartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	tl := openTestTailer(t, path, false)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString(`{"timestamp": 17`)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	_, err = tl.Next(ctx)
	cancel()
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = f.WriteString("00000000}\n")
	require.NoError(t, err)
	assert.Equal(t, `{"timestamp": 1700000000}`, nextLine(t, tl))
}

// TestTailer_Truncate tests that a truncated source is read from its start
// TestTailer_Truncate 测试截断后的源文件从头读取
func TestTailer_Truncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	tl := openTestTailer(t, path, false)

	appendLines(t, path, `{"seq":1,"padding":"xxxxxxxxxxxxxxxx"}`)
	assert.Equal(t, `{"seq":1,"padding":"xxxxxxxxxxxxxxxx"}`, nextLine(t, tl))

	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(20 * testPoll)
	appendLines(t, path, `{"seq":2}`)
	assert.Equal(t, `{"seq":2}`, nextLine(t, tl))
}

// TestTailer_Deleted tests that deleting the source is fatal without reopen
// TestTailer_Deleted 测试未启用重新打开时删除源文件会导致致命错误
func TestTailer_Deleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	tl := openTestTailer(t, path, false)

	require.NoError(t, os.Remove(path))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := tl.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

// TestTailer_Reopen tests following the path across delete and recreate
// TestTailer_Reopen 测试删除并重建后继续跟踪
func TestTailer_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	tl := openTestTailer(t, path, true)

	appendLines(t, path, `{"seq":1}`)
	assert.Equal(t, `{"seq":1}`, nextLine(t, tl))

	require.NoError(t, os.Remove(path))
	time.Sleep(20 * testPoll)
	appendLines(t, path, `{"rotated":true}`)
	assert.Equal(t, `{"rotated":true}`, nextLine(t, tl))
}

// TestTailer_ReopenRightAfterOpen tests a rotation that happens before the first poll
// TestTailer_ReopenRightAfterOpen 测试在首次轮询之前发生的轮转
func TestTailer_ReopenRightAfterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.jsonl")
	tl := openTestTailer(t, path, true)
	require.NoError(t, os.Remove(path))

	go func() {
		time.Sleep(20 * testPoll)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		_, _ = f.WriteString(`{"rotated":true}` + "\n")
		_ = f.Close()
	}()

	assert.Equal(t, `{"rotated":true}`, nextLine(t, tl))
}

// TestOpenTailer_PollIntervalFixed tests that the first tailer fixes the process wide interval
// TestOpenTailer_PollIntervalFixed 测试首个 Tailer 固定进程级轮询间隔
func TestOpenTailer_PollIntervalFixed(t *testing.T) {
	first := openTestTailer(t, filepath.Join(t.TempDir(), "a.jsonl"), false)

	tl, err := OpenTailer(context.Background(), filepath.Join(t.TempDir(), "b.jsonl"),
		TailerOptions{PollInterval: 7 * testPoll})
	require.NoError(t, err)
	defer tl.Close()

	assert.Equal(t, first.PollInterval(), tl.PollInterval())
}

// TestTailer_Cancel tests that Next honours cancellation
// TestTailer_Cancel 测试 Next 响应取消
func TestTailer_Cancel(t *testing.T) {
	tl := openTestTailer(t, filepath.Join(t.TempDir(), "traffic.jsonl"), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tl.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = OpenTailer(ctx, filepath.Join(t.TempDir(), "x.jsonl"), TailerOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestOpenTailer_Directory tests that a directory cannot be followed
// TestOpenTailer_Directory 测试无法跟踪目录
func TestOpenTailer_Directory(t *testing.T) {
	_, err := OpenTailer(context.Background(), t.TempDir(), TailerOptions{PollInterval: testPoll})
	assert.Error(t, err)
}
