package commands

import (
	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/daemon"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start", "daemon"},
	Short:   "Run the feed daemon in the foreground",
	// Short: 在前台运行数据源守护进程
	Long: `Run the feed daemon: follow the configured source, enrich each record and
broadcast it to WebSocket viewers. SIGHUP reloads the configuration,
SIGINT or SIGTERM stops it.
运行数据源守护进程。SIGHUP 重新加载配置，SIGINT 或 SIGTERM 停止运行。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon.Run(cmd.Context(), &daemon.Options{ConfigPath: config.GetConfigPath()})
	},
}
