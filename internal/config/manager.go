package config

import (
	"fmt"
	"sync"

	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/logger"
)

// ConfigManager handles all configuration-related operations in a centralized manner
// ConfigManager 以集中方式处理所有配置相关操作
type ConfigManager struct {
	configPath string
	mutex      sync.RWMutex
	config     *types.GlobalConfig
}

// NewConfigManager creates a new configuration manager instance
// NewConfigManager 创建新的配置管理器实例
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// LoadConfig loads the configuration from the specified path
// LoadConfig 从指定路径加载配置
func (cm *ConfigManager) LoadConfig() error {
	cfg, err := types.LoadGlobalConfig(cm.configPath)
	if err != nil {
		return err
	}

	cm.mutex.Lock()
	cm.config = cfg
	cm.mutex.Unlock()
	return nil
}

// Reload re-reads the file. On failure the current configuration stays in place.
// Reload 重新读取配置文件，失败时保留当前配置。
func (cm *ConfigManager) Reload() (old, current *types.GlobalConfig, err error) {
	cfg, err := types.LoadGlobalConfig(cm.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reload %s: %w", cm.configPath, err)
	}

	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	old = cm.config
	cm.config = cfg
	return old, cfg, nil
}

// GetConfig returns a copy of the current configuration
// GetConfig 返回当前配置的副本
func (cm *ConfigManager) GetConfig() *types.GlobalConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	// Return a copy to prevent external modifications
	cfgCopy := *cm.config
	cfgCopy.Web.AllowedOrigins = append([]string(nil), cm.config.Web.AllowedOrigins...)
	return &cfgCopy
}

// UpdateConfig updates the current configuration
// UpdateConfig 更新当前配置
func (cm *ConfigManager) UpdateConfig(newConfig *types.GlobalConfig) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.config = newConfig
}

// section copies one part of the configuration under the read lock.
func section[T any](cm *ConfigManager, pick func(*types.GlobalConfig) T) *T {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}
	v := pick(cm.config)
	return &v
}

// GetBaseConfig returns the base configuration
// GetBaseConfig 返回基础配置
func (cm *ConfigManager) GetBaseConfig() *types.BaseConfig {
	return section(cm, func(c *types.GlobalConfig) types.BaseConfig { return c.Base })
}

// GetFeedConfig returns the feed configuration
// GetFeedConfig 返回事件流配置
func (cm *ConfigManager) GetFeedConfig() *types.FeedConfig {
	return section(cm, func(c *types.GlobalConfig) types.FeedConfig { return c.Feed })
}

// GetGeoIPConfig returns the GeoIP configuration
// GetGeoIPConfig 返回 GeoIP 配置
func (cm *ConfigManager) GetGeoIPConfig() *types.GeoIPConfig {
	return section(cm, func(c *types.GlobalConfig) types.GeoIPConfig { return c.GeoIP })
}

// GetWebConfig returns the web configuration
// GetWebConfig 返回Web配置
func (cm *ConfigManager) GetWebConfig() *types.WebConfig {
	return section(cm, func(c *types.GlobalConfig) types.WebConfig { return c.Web })
}

// GetMetricsConfig returns the metrics configuration
// GetMetricsConfig 返回指标配置
func (cm *ConfigManager) GetMetricsConfig() *types.MetricsConfig {
	return section(cm, func(c *types.GlobalConfig) types.MetricsConfig { return c.Metrics })
}

// GetRelayConfig returns the relay configuration
// GetRelayConfig 返回转发配置
func (cm *ConfigManager) GetRelayConfig() *types.RelayConfig {
	return section(cm, func(c *types.GlobalConfig) types.RelayConfig { return c.Relay })
}

// GetLoggingConfig returns the logging configuration
// GetLoggingConfig 返回日志配置
func (cm *ConfigManager) GetLoggingConfig() *logger.LoggingConfig {
	return section(cm, func(c *types.GlobalConfig) logger.LoggingConfig { return c.Logging })
}

// GetConfigPath returns the configuration file path
// GetConfigPath 返回配置文件路径
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// Validate validates the current configuration
// Validate 验证当前配置
func (cm *ConfigManager) Validate() error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if cm.config == nil {
		return nil
	}

	return cm.config.Validate()
}
