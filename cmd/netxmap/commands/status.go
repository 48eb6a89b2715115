package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/netxfw/netxmap/internal/feed"
	"github.com/netxfw/netxmap/internal/utils/fmtutil"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline statistics of a running instance",
	// Short: 显示运行中实例的流水线统计
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := statusAddr
		if addr == "" {
			cfg, err := loadConfigOrDefault(cmd.Context())
			if err != nil {
				return err
			}
			host := cfg.Web.Listen
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			addr = net.JoinHostPort(host, strconv.Itoa(cfg.Web.Port))
		}

		st, err := fetchStats(cmd, "http://"+addr+"/api/stats")
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), st, time.Now())
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "host:port of the web server (default: from config)")
}

func fetchStats(cmd *cobra.Command, url string) (*feed.Stats, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("netxmap is not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status from %s: %s", url, resp.Status)
	}
	var st feed.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &st, nil
}

func printStats(w io.Writer, st *feed.Stats, now time.Time) {
	fmt.Fprintf(w, "📊 netxmap status: %s\n", st.State)
	fmt.Fprintf(w, "  Source:        %s\n", st.SourcePath)
	if st.Filter != "" {
		fmt.Fprintf(w, "  Filter:        %s\n", st.Filter)
	}
	fmt.Fprintf(w, "  Subscribers:   %d\n", st.Subscribers)
	fmt.Fprintf(w, "  Lines:         %s\n", fmtutil.FormatNumber(st.Lines))
	fmt.Fprintf(w, "  Decode errors: %s\n", fmtutil.FormatNumber(st.DecodeErrors))
	fmt.Fprintf(w, "  Filtered:      %s\n", fmtutil.FormatNumber(st.Filtered))
	fmt.Fprintf(w, "  Broadcasts:    %s\n", fmtutil.FormatNumber(st.Broadcasts))
	fmt.Fprintf(w, "  Deliveries:    %s (failures %s, pruned %s)\n",
		fmtutil.FormatNumber(st.Deliveries), fmtutil.FormatNumber(st.Failures), fmtutil.FormatNumber(st.Pruned))
	if st.LastEvent != nil {
		fmt.Fprintf(w, "  Last event:    %s ago\n", fmtutil.FormatDuration(now.Sub(*st.LastEvent).Truncate(time.Second)))
	}
	if st.Error != "" {
		fmt.Fprintf(w, "  ❌ Error:      %s\n", st.Error)
	}
}
