package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netxfw/netxmap/internal/generator"
	"github.com/netxfw/netxmap/internal/utils/logger"
	"github.com/spf13/cobra"
)

var generateOpts struct {
	file       string
	count      int
	continuous bool
	minDelay   time.Duration
	maxDelay   time.Duration
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic attack traffic records",
	// Short: 写入模拟攻击流量记录
	Long: `Write random traffic records, one JSON object per line.
Without --continuous the file is replaced with --count records; with it,
records are appended until interrupted.
写入随机流量记录（每行一个 JSON 对象）。未指定 --continuous 时覆盖文件并写入
--count 条记录；指定后持续追加直到被中断。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runGenerate(ctx, cmd)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateOpts.file, "file", "f", "network_traffic.jsonl", "Output file")
	f.IntVarP(&generateOpts.count, "count", "n", 100, "Number of records to write (ignored with --continuous)")
	f.BoolVar(&generateOpts.continuous, "continuous", false, "Append records until interrupted")
	f.DurationVar(&generateOpts.minDelay, "min-delay", generator.DefaultMinDelay, "Minimum pause between records")
	f.DurationVar(&generateOpts.maxDelay, "max-delay", generator.DefaultMaxDelay, "Maximum pause between records")
}

func runGenerate(ctx context.Context, cmd *cobra.Command) error {
	log := logger.Get(ctx)
	g, err := generator.New(generator.Options{
		MinDelay: generateOpts.minDelay,
		MaxDelay: generateOpts.maxDelay,
	})
	if err != nil {
		return err
	}

	if generateOpts.continuous {
		log.Infof("📡 Appending traffic to %s until interrupted", generateOpts.file)
	}
	n, err := g.WriteFile(ctx, generateOpts.file, generateOpts.count, generateOpts.continuous)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[OK] Wrote %d records to %s\n", n, generateOpts.file)
	return nil
}
