package config

import (
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/logger"
)

// Configurable represents the interface for configuration management
// Configurable 表示配置管理的接口
type Configurable interface {
	LoadConfig() error
	Reload() (old, current *types.GlobalConfig, err error)
	GetConfig() *types.GlobalConfig
	UpdateConfig(*types.GlobalConfig)

	// Getters for specific configuration sections
	GetBaseConfig() *types.BaseConfig
	GetFeedConfig() *types.FeedConfig
	GetGeoIPConfig() *types.GeoIPConfig
	GetWebConfig() *types.WebConfig
	GetMetricsConfig() *types.MetricsConfig
	GetRelayConfig() *types.RelayConfig
	GetLoggingConfig() *logger.LoggingConfig

	// Utility methods
	GetConfigPath() string
	Validate() error
}

var _ Configurable = (*ConfigManager)(nil)

// GetDefaultConfigPath returns the default configuration file path
// GetDefaultConfigPath 返回默认配置文件路径
func GetDefaultConfigPath() string {
	return DefaultConfigPath
}
