package commands

import (
	"fmt"
	"os"

	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/runtime"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "netxmap",
	Short: "A live attack map feed: tail, enrich and broadcast traffic events",
	// Short: 实时攻击地图数据源：追踪、富化并广播流量事件
	Long: `netxmap follows a newline-delimited JSON traffic log, attaches source and
destination locations to every record and pushes the result to connected
WebSocket viewers as it happens.
netxmap 追踪按行分隔的 JSON 流量日志，为每条记录附加源和目的地理位置，
并实时推送给已连接的 WebSocket 查看者。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load configuration to get logging settings
		// 加载配置以获取日志设置
		globalCfg, err := types.LoadGlobalConfig(config.GetConfigPath())
		if err != nil {
			// If config fails to load, use default logging config (console only)
			// 如果加载配置失败，使用默认日志配置（仅控制台）
			logger.Init(logger.LoggingConfig{
				Enabled: true,
				Level:   "info",
			})
		} else {
			logger.Init(globalCfg.Logging)
		}

		// Inject logger into context
		// 将 Logger 注入 Context
		ctx := logger.WithContext(cmd.Context(), logger.Get(cmd.Context()))
		cmd.SetContext(ctx)
	},
}

func init() {
	// Config file path
	// 配置文件路径
	RootCmd.PersistentFlags().StringVarP(&runtime.ConfigPath, "config", "c", "", fmt.Sprintf("Path to configuration file (default: %s)", config.DefaultConfigPath))

	RootCmd.AddCommand(serveCmd)    // serve - 运行守护进程
	RootCmd.AddCommand(generateCmd) // generate - 生成模拟流量
	RootCmd.AddCommand(enrichCmd)   // enrich - 离线富化已有文件
	RootCmd.AddCommand(statusCmd)   // status - 查询运行中实例的统计
	RootCmd.AddCommand(configCmd)   // config - 配置管理
	RootCmd.AddCommand(versionCmd)  // version - 显示版本

	// Disable powershell completion (Linux-focused project doesn't need it)
	// 禁用 powershell 补全（Linux 项目不需要）
	RootCmd.CompletionOptions.DisableDescriptions = true
}

// createCustomCompletionCmd creates a custom completion command without powershell.
// createCustomCompletionCmd 创建不含 powershell 的自定义补全命令。
func createCustomCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell autocompletion script",
		Long: `Generate shell autocompletion script for netxmap.
生成 netxmap 的 shell 自动补全脚本。

Examples:
  netxmap completion bash > /etc/bash_completion.d/netxmap
  netxmap completion zsh  > "${fpath[1]}/_netxmap"
  netxmap completion fish > ~/.config/fish/completions/netxmap.fish`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return RootCmd.GenBashCompletionV2(out, true)
			case "zsh":
				return RootCmd.GenZshCompletion(out)
			case "fish":
				return RootCmd.GenFishCompletion(out, true)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", args[0])
			}
		},
	}
}

func Execute() {
	// Replace default completion command with custom one (no powershell)
	// 用自定义补全命令替换默认命令（不含 powershell）
	for _, cmd := range RootCmd.Commands() {
		if cmd.Name() == "completion" {
			RootCmd.RemoveCommand(cmd)
			break
		}
	}
	RootCmd.AddCommand(createCustomCompletionCmd())

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
