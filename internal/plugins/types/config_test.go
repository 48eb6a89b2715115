package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestLoadGlobalConfig_NonExistent tests loading from non-existent file
// TestLoadGlobalConfig_NonExistent 测试从不存在的文件加载
func TestLoadGlobalConfig_NonExistent(t *testing.T) {
	_, err := LoadGlobalConfig("/non/existent/path/config.yaml")
	assert.Error(t, err)
}

// TestLoadGlobalConfig_Valid tests loading a valid config file
// TestLoadGlobalConfig_Valid 测试加载有效配置文件
func TestLoadGlobalConfig_Valid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
feed:
  source_path: /tmp/traffic.jsonl
  poll_interval: 100ms
  reopen: true
web:
  enabled: true
  port: 8080
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := LoadGlobalConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/traffic.jsonl", cfg.Feed.SourcePath)
	assert.Equal(t, 100*time.Millisecond, cfg.Feed.PollDuration())
	assert.True(t, cfg.Feed.ReOpen)
	assert.Equal(t, 8080, cfg.Web.Port)
	// Untouched sections keep defaults
	// 未配置的段保持默认值
	assert.Equal(t, 64, cfg.Web.SendBuffer)
	assert.Equal(t, 200*time.Millisecond, cfg.GeoIP.LookupTimeoutDuration())
	assert.Equal(t, "netxmap.events", cfg.Relay.Subject)
}

// TestLoadGlobalConfig_Empty tests loading an empty config file
// TestLoadGlobalConfig_Empty 测试加载空配置文件
func TestLoadGlobalConfig_Empty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0644))

	cfg, err := LoadGlobalConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestDefaultConfigTemplate_MatchesDefaults tests that the template decodes to DefaultConfig
// TestDefaultConfigTemplate_MatchesDefaults 测试模板解码结果与 DefaultConfig 一致
func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	var cfg GlobalConfig
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate), &cfg))
	if cfg.Web.AllowedOrigins != nil && len(cfg.Web.AllowedOrigins) == 0 {
		cfg.Web.AllowedOrigins = nil
	}
	assert.Equal(t, *DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

// TestParseGlobalConfig_Malformed tests malformed YAML
// TestParseGlobalConfig_Malformed 测试格式错误的 YAML
func TestParseGlobalConfig_Malformed(t *testing.T) {
	_, err := ParseGlobalConfig([]byte("feed: [unclosed"))
	assert.Error(t, err)
}

// TestApplyEnv tests environment overrides
// TestApplyEnv 测试环境变量覆盖
func TestApplyEnv(t *testing.T) {
	t.Setenv("NETXMAP_WEB__PORT", "9000")
	t.Setenv("NETXMAP_FEED__SOURCE_PATH", "/data/traffic.jsonl")
	t.Setenv("NETXMAP_RELAY__ENABLED", "true")

	cfg, err := ParseGlobalConfig([]byte("web:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, "/data/traffic.jsonl", cfg.Feed.SourcePath)
	assert.True(t, cfg.Relay.Enabled)
	// Siblings of overridden keys are preserved
	// 被覆盖键的同级键保持不变
	assert.Equal(t, "0.0.0.0", cfg.Web.Listen)
	assert.Equal(t, "250ms", cfg.Feed.PollInterval)
}

// TestInitConfigFile_Create tests writing the template to a new path
// TestInitConfigFile_Create 测试在新路径写入模板
func TestInitConfigFile_Create(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	created, err := InitConfigFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigTemplate, string(data))
}

// TestInitConfigFile_Repair tests that missing sections are added and user values are kept
// TestInitConfigFile_Repair 测试补全缺失段并保留用户值
func TestInitConfigFile_Repair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("web:\n  port: 9090\ncustom_key: keep\n"), 0600))

	created, err := InitConfigFile(path)
	require.NoError(t, err)
	assert.False(t, created)

	cfg, err := LoadGlobalConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "netxmap.events", cfg.Relay.Subject)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom_key: keep")
	assert.Contains(t, string(data), "# Feed Configuration")

	backups, err := filepath.Glob(path + ".bak.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

// TestMergeYamlNodes tests merging user values into the template
// TestMergeYamlNodes 测试将用户值合并到模板
func TestMergeYamlNodes(t *testing.T) {
	var target, source yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("# head\na: 1\nb:\n  c: 2\n  d: 3\n"), &target))
	require.NoError(t, yaml.Unmarshal([]byte("b:\n  d: 4\ne: 5\n"), &source))

	MergeYamlNodes(&target, &source)

	var out map[string]any
	require.NoError(t, target.Decode(&out))
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, map[string]any{"c": 2, "d": 4}, out["b"])
	assert.Equal(t, 5, out["e"])
}

// TestCleanupBackups tests that only the newest backups are kept
// TestCleanupBackups 测试仅保留最新的备份
func TestCleanupBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	for _, ts := range []string{"20240101-000000", "20240102-000000", "20240103-000000", "20240104-000000"} {
		require.NoError(t, os.WriteFile(path+".bak."+ts, []byte("x"), 0600))
	}

	cleanupBackups(path, 2)

	matches, err := filepath.Glob(path + ".bak.*")
	require.NoError(t, err)
	assert.Equal(t, []string{path + ".bak.20240103-000000", path + ".bak.20240104-000000"}, matches)
}
