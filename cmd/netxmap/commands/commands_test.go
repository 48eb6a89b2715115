package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/runtime"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand executes a cobra command and returns output.
// executeCommand 执行 cobra 命令并返回输出。
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	original := runtime.ConfigPath
	t.Cleanup(func() { runtime.ConfigPath = original })

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// missingConfig returns a config path that does not exist.
func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.yaml")
}

// TestRootCommandHelp tests root command help output.
// TestRootCommandHelp 测试根命令帮助输出。
func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommand(t, RootCmd, "--help")
	assert.NoError(t, err)
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Available Commands:")
	for _, name := range []string{"serve", "generate", "enrich", "status", "config", "version"} {
		assert.Contains(t, output, name)
	}
}

// TestInvalidCommand tests invalid command handling.
// TestInvalidCommand 测试无效命令处理。
func TestInvalidCommand(t *testing.T) {
	_, err := executeCommand(t, RootCmd, "invalid-command")
	assert.Error(t, err)
}

// TestVersionCmd tests the version command.
// TestVersionCmd 测试 version 命令。
func TestVersionCmd(t *testing.T) {
	output, err := executeCommand(t, RootCmd, "--config", missingConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, output, "netxmap dev")
}

// TestCompletionCmd tests the custom completion command.
// TestCompletionCmd 测试自定义补全命令。
func TestCompletionCmd(t *testing.T) {
	root := &cobra.Command{Use: "netxmap"}
	root.AddCommand(createCustomCompletionCmd())

	_, err := executeCommand(t, root, "completion", "powershell")
	assert.Error(t, err)
}

// TestGenerateCmd tests writing a fixed number of records.
// TestGenerateCmd 测试写入固定数量的记录。
func TestGenerateCmd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "traffic.jsonl")
	output, err := executeCommand(t, RootCmd, "--config", missingConfig(t),
		"generate", "--file", out, "--count", "5", "--min-delay", "0s", "--max-delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, output, "[OK] Wrote 5 records")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		ev, err := feed.Decode(line)
		require.NoError(t, err)
		assert.NotNil(t, ev.AttackType)
	}
}

// TestGenerateCmd_InvalidDelay tests that a reversed delay range is rejected.
// TestGenerateCmd_InvalidDelay 测试反向的延迟范围会被拒绝。
func TestGenerateCmd_InvalidDelay(t *testing.T) {
	out := filepath.Join(t.TempDir(), "traffic.jsonl")
	_, err := executeCommand(t, RootCmd, "--config", missingConfig(t),
		"generate", "--file", out, "--count", "1", "--min-delay", "2s", "--max-delay", "1s")
	assert.Error(t, err)
}

// TestEnrichAll tests line handling of the offline enrichment.
// TestEnrichAll 测试离线富化的逐行处理。
func TestEnrichAll(t *testing.T) {
	input := strings.Join([]string{
		`{"timestamp": 1700000000.5, "attack_type": "SYN_FLOOD", "magnitude": 42, "source_ip": "8.8.8.8", "destination_ip": "1.1.1.1"}`,
		``,
		`not json`,
		`[1, 2, 3]`,
		`{"attack_type": "UDP_FLOOD"}`,
	}, "\n")

	var out, diag bytes.Buffer
	n, err := enrichAll(context.Background(), feed.NewEnricher(nil, 0, nil), strings.NewReader(input), &out, &diag)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Contains(t, diag.String(), "line 3:")
	assert.Contains(t, diag.String(), "line 4:")
	assert.NotContains(t, diag.String(), "line 2:")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "SYN_FLOOD", first["attack_type"])
	assert.Equal(t, 42.0, first["magnitude"])
	assert.Contains(t, first, "src_lat")
	assert.Nil(t, first["src_lat"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "UDP_FLOOD", second["attack_type"])
	assert.Nil(t, second["timestamp"])
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

// TestEnrichAll_WriteError tests that enrichment stops at the first failed write
// TestEnrichAll_WriteError 测试首次写入失败时停止富化
func TestEnrichAll_WriteError(t *testing.T) {
	const total = 1000
	var input strings.Builder
	for i := 0; i < total; i++ {
		input.WriteString(`{"attack_type": "SYN_FLOOD", "source_ip": "8.8.8.8", "destination_ip": "1.1.1.1"}` + "\n")
	}

	out := &failingWriter{}
	var diag bytes.Buffer
	n, err := enrichAll(context.Background(), feed.NewEnricher(nil, 0, nil), strings.NewReader(input.String()), out, &diag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Less(t, n, total)
	assert.Equal(t, 1, out.writes)
}

// TestEnrichCmd tests the enrich command with a static location table.
// TestEnrichCmd 测试使用静态位置表的 enrich 命令。
func TestEnrichCmd(t *testing.T) {
	dir := t.TempDir()
	static := filepath.Join(dir, "locations.yaml")
	require.NoError(t, os.WriteFile(static, []byte(`locations:
  - network: 8.8.8.0/24
    latitude: 37.751
    longitude: -97.822
    country: United States
`), 0644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`feed:
  source_path: "`+filepath.Join(dir, "feed.jsonl")+`"
geoip:
  static_path: "`+static+`"
`), 0644))

	traffic := filepath.Join(dir, "traffic.jsonl")
	require.NoError(t, os.WriteFile(traffic, []byte(
		`{"attack_type": "SLOWLORIS", "source_ip": "8.8.8.8", "destination_ip": "203.0.113.9"}`+"\n"), 0644))

	output, err := executeCommand(t, RootCmd, "--config", cfgPath, "enrich", "--file", traffic)
	require.NoError(t, err)
	assert.Contains(t, output, `"src_country":"United States"`)
	assert.Contains(t, output, `"dst_country":null`)
}

// TestEnrichCmd_MissingFile tests that a missing input file is an error.
// TestEnrichCmd_MissingFile 测试输入文件不存在时返回错误。
func TestEnrichCmd_MissingFile(t *testing.T) {
	_, err := executeCommand(t, RootCmd, "--config", missingConfig(t),
		"enrich", "--file", filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

// TestConfigCommands tests config init, test and show.
// TestConfigCommands 测试 config init、test 和 show。
func TestConfigCommands(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "etc", "config.yaml")

	output, err := executeCommand(t, RootCmd, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "Created default configuration")
	assert.FileExists(t, cfgPath)

	output, err = executeCommand(t, RootCmd, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "is up to date")

	output, err = executeCommand(t, RootCmd, "--config", cfgPath, "config", "test")
	require.NoError(t, err)
	assert.Contains(t, output, "is valid")

	output, err = executeCommand(t, RootCmd, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "source_path:")
	assert.Contains(t, output, "lookup_timeout:")
}

// TestConfigTest_Invalid tests that an invalid file fails validation.
// TestConfigTest_Invalid 测试无效的配置文件验证失败。
func TestConfigTest_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("web:\n  port: 99999\n"), 0644))

	_, err := executeCommand(t, RootCmd, "--config", cfgPath, "config", "test")
	assert.Error(t, err)
}

// TestStatusCmd tests reading stats from a running instance.
// TestStatusCmd 测试从运行中的实例读取统计信息。
func TestStatusCmd(t *testing.T) {
	last := time.Now().Add(-90 * time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats", r.URL.Path)
		_ = json.NewEncoder(w).Encode(feed.Stats{
			State:       "RUNNING",
			SourcePath:  "/var/lib/netxmap/network_traffic.jsonl",
			Lines:       12500,
			Broadcasts:  12000,
			Subscribers: 3,
			LastEvent:   &last,
		})
	}))
	defer srv.Close()

	output, err := executeCommand(t, RootCmd, "--config", missingConfig(t),
		"status", "--addr", strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	assert.Contains(t, output, "RUNNING")
	assert.Contains(t, output, "12.50K")
	assert.Contains(t, output, "Subscribers:   3")
	assert.Contains(t, output, "1m 3")
}

// TestStatusCmd_Unreachable tests the error when nothing listens.
// TestStatusCmd_Unreachable 测试无服务监听时的错误。
func TestStatusCmd_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := executeCommand(t, RootCmd, "--config", missingConfig(t), "status", "--addr", addr)
	assert.Error(t, err)
}
