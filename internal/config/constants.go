package config

const (
	// DefaultConfigPath is the standard location for the netxmap configuration file.
	// DefaultConfigPath 是 netxmap 配置文件的标准位置。
	DefaultConfigPath = "/etc/netxmap/config.yaml"

	// DefaultPidPath is the location of the daemon PID file.
	// DefaultPidPath 是守护进程 PID 文件的位置。
	DefaultPidPath = "/var/run/netxmap.pid"
)
