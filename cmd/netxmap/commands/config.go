package commands

import (
	"fmt"

	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/daemon"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	// Short: 配置管理
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration file or add missing keys to it",
	// Short: 创建配置文件或补全缺失的键
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		created, err := types.InitConfigFile(path)
		if err != nil {
			return fmt.Errorf("failed to initialize %s: %w", path, err)
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "[OK] Created default configuration at %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "[OK] Configuration %s is up to date\n", path)
		}
		return nil
	},
}

var configTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate the configuration file",
	// Short: 验证配置文件
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if err := daemon.TestConfiguration(cmd.Context(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[OK] Configuration %s is valid\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	// Short: 输出生效的配置（包含默认值和环境变量覆盖）
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigOrDefault(cmd.Context())
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configTestCmd)
	configCmd.AddCommand(configShowCmd)
}
