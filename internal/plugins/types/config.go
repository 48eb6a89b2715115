package types

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/netxfw/netxmap/internal/utils/fileutil"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"gopkg.in/yaml.v3"
)

// ConfigMu protects concurrent access to the configuration file.
// ConfigMu 保护对配置文件的并发访问。
var ConfigMu sync.RWMutex

// EnvPrefix is the prefix of environment variables that override file values.
// Sections are separated by a double underscore, e.g. NETXMAP_WEB__PORT=9000.
// EnvPrefix 是覆盖配置文件值的环境变量前缀，段之间用双下划线分隔。
const EnvPrefix = "NETXMAP_"

// DefaultConfigTemplate defines the default configuration file structure with bilingual comments.
// It is used to initialize new config files and to repair missing sections in existing files.
// DefaultConfigTemplate 定义带双语注释的默认配置文件结构，用于初始化和修复配置文件。
const DefaultConfigTemplate = `# netxmap Configuration File / netxmap 配置文件
#

# Base Configuration / 基础配置
base:
  # PID file of the running daemon. Empty disables it.
  # 守护进程 PID 文件。为空则不写入。
  pid_file: "/var/run/netxmap.pid"

  # Enable Pprof: Enable Go performance profiling (localhost only).
  # 启用 Pprof：启用 Go 性能分析（仅限本地主机）。
  enable_pprof: false
  pprof_port: 6060

# Feed Configuration / 事件流配置
feed:
  # Source Path: Append-only JSONL traffic log. Created empty if missing.
  # 源文件路径：只追加的 JSONL 流量日志。不存在时自动创建。
  source_path: "/var/lib/netxmap/network_traffic.jsonl"

  # Poll Interval: How often to re-check the log for new data.
  # 轮询间隔：检查日志新数据的频率。
  poll_interval: "250ms"

  # Reopen: Follow the file across rotation (delete + recreate).
  # When false, deleting the source log stops the pipeline.
  # 重新打开：在日志轮转（删除并重建）后继续跟踪。
  # 为 false 时，删除源日志会终止流水线。
  reopen: false

  # Filter: Optional expression; only matching events are broadcast.
  # Example: magnitude >= 50 && attack_type != "ICMP_FLOOD"
  # 过滤器：可选表达式，仅广播匹配的事件。
  filter: ""

# GeoIP Configuration / GeoIP 配置
geoip:
  # MaxMind City database (.mmdb). Empty disables MaxMind lookups.
  # MaxMind City 数据库 (.mmdb)。为空则禁用 MaxMind 查询。
  database_path: ""

  # Static YAML location table, used when no database is configured.
  # 静态 YAML 位置表，在未配置数据库时使用。
  static_path: ""

  # Locale used for country names.
  # 国家名称使用的语言。
  locale: "en"

  # Lookup cache (entries / TTL). cache_size 0 disables caching.
  # 查询缓存（条目数 / 过期时间）。cache_size 为 0 时禁用缓存。
  cache_size: 10000
  cache_ttl: "10m"

  # Per lookup timeout; a slow lookup is treated as "no location".
  # 单次查询超时；超时按"无位置"处理。
  lookup_timeout: "200ms"

# Web Server Configuration / Web 服务器配置
web:
  enabled: true
  listen: "0.0.0.0"
  port: 8000

  # Per subscriber send queue; a full queue drops the subscriber.
  # 每个订阅者的发送队列；队列满时移除该订阅者。
  send_buffer: 64
  write_timeout: "5s"
  ping_interval: "30s"

  # Allowed WebSocket origins. Empty allows any origin.
  # 允许的 WebSocket 来源。为空时允许任意来源。
  allowed_origins: []

# Metrics Configuration / 监控指标配置
# Metrics are always served by the web server at /metrics.
# 指标始终通过 web 服务器的 /metrics 路径提供。
metrics:
  enabled: true
  server_enabled: false
  port: 8001
  push_enabled: false
  push_gateway_addr: ""
  push_interval: "15s"
  textfile_enabled: false
  textfile_path: ""

# Relay Configuration / 转发配置
# Publish every enriched event to a NATS subject.
# 将每个富化事件发布到 NATS 主题。
relay:
  enabled: false
  url: "nats://127.0.0.1:4222"
  subject: "netxmap.events"
  name: "netxmap"

# Logging Configuration / 日志配置
logging:
  enabled: false
  level: "info"
  format: "console"
  path: "/var/log/netxmap/netxmap.log"
  max_size: 10
  max_backups: 3
  max_age: 30
  compress: true
`

// GlobalConfig represents the top-level configuration structure.
// GlobalConfig 表示顶级配置结构。
type GlobalConfig struct {
	Base    BaseConfig           `yaml:"base"`
	Feed    FeedConfig           `yaml:"feed"`
	GeoIP   GeoIPConfig          `yaml:"geoip"`
	Web     WebConfig            `yaml:"web"`
	Metrics MetricsConfig        `yaml:"metrics"`
	Relay   RelayConfig          `yaml:"relay"`
	Logging logger.LoggingConfig `yaml:"logging"`
}

// BaseConfig defines process level settings.
// BaseConfig 定义进程级设置。
type BaseConfig struct {
	PidFile     string `yaml:"pid_file"`
	EnablePprof bool   `yaml:"enable_pprof"`
	PprofPort   int    `yaml:"pprof_port" validate:"omitempty,min=1,max=65535"`
}

// FeedConfig defines the tail-enrich-broadcast pipeline.
// FeedConfig 定义 tail-富化-广播 流水线。
type FeedConfig struct {
	SourcePath   string `yaml:"source_path" validate:"required"`
	PollInterval string `yaml:"poll_interval" validate:"required,duration"`
	ReOpen       bool   `yaml:"reopen"`
	Filter       string `yaml:"filter"`
}

// GeoIPConfig defines the location resolver.
// GeoIPConfig 定义位置解析器。
type GeoIPConfig struct {
	DatabasePath  string `yaml:"database_path"`
	StaticPath    string `yaml:"static_path"`
	Locale        string `yaml:"locale"`
	CacheSize     int    `yaml:"cache_size" validate:"gte=0"`
	CacheTTL      string `yaml:"cache_ttl" validate:"omitempty,duration"`
	LookupTimeout string `yaml:"lookup_timeout" validate:"required,duration"`
}

// WebConfig defines the HTTP / WebSocket server.
// WebConfig 定义 HTTP / WebSocket 服务器。
type WebConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Listen         string   `yaml:"listen"`
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	SendBuffer     int      `yaml:"send_buffer" validate:"min=1"`
	WriteTimeout   string   `yaml:"write_timeout" validate:"required,duration"`
	PingInterval   string   `yaml:"ping_interval" validate:"required,duration"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig defines the configuration for metrics collection.
// MetricsConfig 定义指标收集配置。
type MetricsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ServerEnabled   bool   `yaml:"server_enabled"`
	Port            int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	PushEnabled     bool   `yaml:"push_enabled"`
	PushGatewayAddr string `yaml:"push_gateway_addr"`
	PushInterval    string `yaml:"push_interval" validate:"omitempty,duration"`
	TextfileEnabled bool   `yaml:"textfile_enabled"`
	TextfilePath    string `yaml:"textfile_path"`
}

// RelayConfig defines the NATS relay of enriched events.
// RelayConfig 定义富化事件的 NATS 转发。
type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Name    string `yaml:"name"`
}

// PollDuration returns the parsed poll interval.
func (c FeedConfig) PollDuration() time.Duration {
	return parseDuration(c.PollInterval, 250*time.Millisecond)
}

// CacheTTLDuration returns the parsed cache TTL; zero means entries never expire.
func (c GeoIPConfig) CacheTTLDuration() time.Duration {
	return parseDuration(c.CacheTTL, 0)
}

// LookupTimeoutDuration returns the parsed per lookup timeout.
func (c GeoIPConfig) LookupTimeoutDuration() time.Duration {
	return parseDuration(c.LookupTimeout, 200*time.Millisecond)
}

// WriteTimeoutDuration returns the parsed WebSocket write deadline.
func (c WebConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(c.WriteTimeout, 5*time.Second)
}

// PingIntervalDuration returns the parsed WebSocket ping interval.
func (c WebConfig) PingIntervalDuration() time.Duration {
	return parseDuration(c.PingInterval, 30*time.Second)
}

// Addr returns the listen address of the web server.
func (c WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen, c.Port)
}

// PushIntervalDuration returns the parsed push gateway interval.
func (c MetricsConfig) PushIntervalDuration() time.Duration {
	return parseDuration(c.PushInterval, 15*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// DefaultConfig returns a configuration populated with defaults.
// DefaultConfig 返回填充了默认值的配置。
func DefaultConfig() *GlobalConfig {
	return &GlobalConfig{
		Base: BaseConfig{
			PidFile:   "/var/run/netxmap.pid",
			PprofPort: 6060,
		},
		Feed: FeedConfig{
			SourcePath:   "/var/lib/netxmap/network_traffic.jsonl",
			PollInterval: "250ms",
		},
		GeoIP: GeoIPConfig{
			Locale:        "en",
			CacheSize:     10000,
			CacheTTL:      "10m",
			LookupTimeout: "200ms",
		},
		Web: WebConfig{
			Enabled:      true,
			Listen:       "0.0.0.0",
			Port:         8000,
			SendBuffer:   64,
			WriteTimeout: "5s",
			PingInterval: "30s",
		},
		Metrics: MetricsConfig{
			Enabled:      true,
			Port:         8001,
			PushInterval: "15s",
		},
		Relay: RelayConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "netxmap.events",
			Name:    "netxmap",
		},
		Logging: logger.LoggingConfig{
			Enabled:    false,
			Level:      "info",
			Format:     "console",
			Path:       "/var/log/netxmap/netxmap.log",
			MaxSize:    10, // 10MB
			MaxBackups: 3,
			MaxAge:     30, // 30 days
			Compress:   true,
		},
	}
}

// LoadGlobalConfig loads the configuration from a YAML file, applies environment overrides and validates it.
// LoadGlobalConfig 从 YAML 文件加载配置，应用环境变量覆盖并进行验证。
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	ConfigMu.RLock()
	defer ConfigMu.RUnlock()

	safePath := filepath.Clean(path) // Sanitize path to prevent directory traversal
	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, err
	}
	return ParseGlobalConfig(data)
}

// ParseGlobalConfig builds a configuration from raw YAML on top of the defaults.
// ParseGlobalConfig 在默认值之上解析原始 YAML 配置。
func ParseGlobalConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := ApplyEnv(cfg, EnvPrefix); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables carrying prefix onto cfg.
// ApplyEnv 将带有指定前缀的环境变量覆盖到 cfg 上。
func ApplyEnv(cfg *GlobalConfig, prefix string) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return err
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"})
}

// InitConfigFile writes the default template to path when it does not exist.
// An existing file is repaired: missing keys are added while user values are kept.
// InitConfigFile 在文件不存在时写入默认模板；已存在时补全缺失的键并保留用户值。
func InitConfigFile(path string) (created bool, err error) {
	ConfigMu.Lock()
	defer ConfigMu.Unlock()

	safePath := filepath.Clean(path)
	data, err := os.ReadFile(safePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
			return false, err
		}
		return true, fileutil.AtomicWriteFile(safePath, []byte(DefaultConfigTemplate), 0600)
	}
	if err != nil {
		return false, err
	}
	return false, repairConfigFile(safePath, data)
}

// repairConfigFile merges the file into the default template so that new sections and
// comments appear while every user value survives. The original is kept as a backup.
func repairConfigFile(path string, data []byte) error {
	log := logger.Get(context.Background())

	var defaultNode yaml.Node
	if err := yaml.Unmarshal([]byte(DefaultConfigTemplate), &defaultNode); err != nil {
		return fmt.Errorf("parse default template: %w", err)
	}

	var fileNode yaml.Node
	if err := yaml.Unmarshal(data, &fileNode); err != nil {
		return fmt.Errorf("config file is malformed: %w", err)
	}
	if fileNode.Kind == 0 {
		// Empty file, write the template as is.
		return fileutil.AtomicWriteFile(path, []byte(DefaultConfigTemplate), 0600)
	}

	MergeYamlNodes(&defaultNode, &fileNode)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&defaultNode); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if bytes.Equal(buf.Bytes(), data) {
		return nil
	}

	backupPath := path + ".bak." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("backup config: %w", err)
	}
	cleanupBackups(path, 3)

	if err := fileutil.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return err
	}
	log.Infof("[OK] Configuration file updated, backup at %s", backupPath)
	return nil
}

// MergeYamlNodes updates target (template) with source (user file).
// Target keeps its key order and comments; source values win; extra source keys are appended.
// MergeYamlNodes 用 source（用户文件）更新 target（模板）。
// target 保留键顺序和注释；source 的值优先；source 中多出的键追加在末尾。
func MergeYamlNodes(target, source *yaml.Node) {
	if target.Kind == yaml.DocumentNode {
		if source.Kind == yaml.DocumentNode && len(target.Content) > 0 && len(source.Content) > 0 {
			MergeYamlNodes(target.Content[0], source.Content[0])
		}
		return
	}

	if target.Kind != yaml.MappingNode || source.Kind != yaml.MappingNode {
		// Replace target with source, but keep comments
		// 用 source 替换 target，但保留注释
		if source.HeadComment == "" {
			source.HeadComment = target.HeadComment
		}
		if source.LineComment == "" {
			source.LineComment = target.LineComment
		}
		if source.FootComment == "" {
			source.FootComment = target.FootComment
		}
		*target = *source
		return
	}

	sourceMap := make(map[string]int)
	for i := 0; i+1 < len(source.Content); i += 2 {
		sourceMap[source.Content[i].Value] = i
	}

	var newContent []*yaml.Node
	processed := make(map[string]bool)

	for i := 0; i+1 < len(target.Content); i += 2 {
		tKey := target.Content[i]
		tVal := target.Content[i+1]
		if sIdx, ok := sourceMap[tKey.Value]; ok {
			MergeYamlNodes(tVal, source.Content[sIdx+1])
			processed[tKey.Value] = true
		}
		newContent = append(newContent, tKey, tVal)
	}

	for i := 0; i+1 < len(source.Content); i += 2 {
		if !processed[source.Content[i].Value] {
			newContent = append(newContent, source.Content[i], source.Content[i+1])
		}
	}

	target.Content = newContent
}

// cleanupBackups keeps only the latest N backup files.
func cleanupBackups(originalPath string, keep int) {
	log := logger.Get(context.Background())
	pattern := filepath.Base(originalPath) + ".bak.*"

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(originalPath), pattern))
	if err != nil || len(matches) <= keep {
		return
	}

	// Timestamps in the name sort chronologically
	sort.Strings(matches)
	for _, f := range matches[:len(matches)-keep] {
		if err := os.Remove(f); err == nil {
			log.Infof("[DELETE] Removed old backup: %s", f)
		}
	}
}
