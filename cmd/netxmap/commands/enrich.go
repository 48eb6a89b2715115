package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/daemon"
	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/geoip"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/logger"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
	"github.com/spf13/cobra"
)

// maxRecordSize bounds a single line read by enrich.
const maxRecordSize = 1 << 20

var enrichFile string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich an existing traffic file and print the payloads",
	// Short: 富化已有流量文件并输出结果
	Long: `Read a traffic file from the start and print one enriched payload per line,
exactly as viewers would receive it. Blank lines are skipped; lines that are
not JSON objects are reported on stderr with their line number.
从头读取流量文件，每行输出一个富化后的负载（与查看者收到的一致）。
空行被跳过；非 JSON 对象的行会在 stderr 中报告行号。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigOrDefault(cmd.Context())
		if err != nil {
			return err
		}
		resolver, err := geoip.Open(daemon.ResolverOptions(cfg.GeoIP))
		if err != nil {
			return fmt.Errorf("failed to open location resolver: %w", err)
		}
		defer func() { _ = geoip.Close(resolver) }()

		f, err := os.Open(enrichFile)
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NewFileError(enrichFile, err)
		}
		if err != nil {
			return err
		}
		defer f.Close()

		enricher := feed.NewEnricher(resolver, cfg.GeoIP.LookupTimeoutDuration(), logger.Get(cmd.Context()))
		_, err = enrichAll(cmd.Context(), enricher, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichFile, "file", "f", "network_traffic.jsonl", "Traffic file to read")
}

// loadConfigOrDefault loads the configuration file, falling back to defaults when it does not exist.
// loadConfigOrDefault 加载配置文件，文件不存在时使用默认配置。
func loadConfigOrDefault(ctx context.Context) (*types.GlobalConfig, error) {
	path := config.GetConfigPath()
	cfg, err := types.LoadGlobalConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Get(ctx).Warnf("⚠️  Config %s not found, using defaults", path)
		return types.DefaultConfig(), nil
	}
	return cfg, err
}

// enrichAll decodes and enriches every line of r, writing payloads to out and
// diagnostics to diag. It returns the number of payloads written.
func enrichAll(ctx context.Context, e *feed.Enricher, r io.Reader, out, diag io.Writer) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordSize)
	w := bufio.NewWriter(out)
	defer w.Flush()

	written := 0
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := feed.Decode(line)
		if err != nil {
			fmt.Fprintf(diag, "line %d: skipped: %v\n", lineNo, err)
			continue
		}
		data, err := json.Marshal(e.Enrich(ctx, ev))
		if err != nil {
			return written, err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return written, fmt.Errorf("write: %w", err)
		}
		written++
	}
	if err := sc.Err(); err != nil {
		return written, fmt.Errorf("read: %w", err)
	}
	return written, w.Flush()
}
