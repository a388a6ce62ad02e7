package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/ipc"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running proxy's connections",
		Long: `Displays every connection currently tracked by a running cursorproxy
daemon, queried over the local IPC/dashboard socket.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cliconf.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}
	cmd.Flags().Bool("json", false, "output raw JSON")
	cliconf.AddConfigFlag(cmd)
	return cmd
}

type statusResponse struct {
	StartedAt   time.Time                `json:"started_at"`
	UptimeMS    int64                    `json:"uptime_ms"`
	CAExpiresAt time.Time                `json:"ca_expires_at"`
	Connections []proxyconf.ConnSnapshot `json:"connections"`
	Injection   bool                     `json:"injection_enabled"`
}

func runStatus(v *viper.Viper) error {
	if !ipc.IsRunning() {
		fmt.Println("no proxy running (ipc socket unreachable)")
		return nil
	}

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", ipc.SocketPath())
			},
		},
	}

	resp, err := client.Get("http://cursorproxy/status")
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("status: decode response: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(sr, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(sr)
	return nil
}

func printStatus(sr statusResponse) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Started:\t%s (%s)\n", sr.StartedAt.Format(time.RFC3339), fmtAge(sr.StartedAt))
	fmt.Fprintf(w, "CA expires:\t%s\n", sr.CAExpiresAt.Format("2006-01-02"))
	fmt.Fprintf(w, "Injection:\t%v\n", sr.Injection)
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(sr.Connections) == 0 {
		fmt.Println("No connections.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tPEER\tUPSTREAM\tALPN\tOPENED\n")
	_, _ = fmt.Fprintf(tw, "--\t----\t--------\t----\t------\n")
	for _, c := range sr.Connections {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.PeerAddr, c.UpstreamAddr, c.ALPN, fmtAge(c.OpenedAt))
	}
	_ = tw.Flush()
}

// fmtAge returns a human-readable age string like "5s ago", "2m ago", or a
// clock time for ages over an hour.
func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
