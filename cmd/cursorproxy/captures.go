package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/ipc"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
)

func newCapturesCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     "captures",
		Short:   "List captured stream artefacts",
		Args:    cobra.NoArgs,
		PreRunE: func(c *cobra.Command, _ []string) error { return cliconf.BindViper(c, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runCaptures(v) },
	}
	cliconf.AddConfigFlag(cmd)
	return cmd
}

func runCaptures(v *viper.Viper) error {
	if ipc.IsRunning() {
		return listCapturesViaDashboard()
	}
	return listCapturesFromDisk(v)
}

func listCapturesViaDashboard() error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", ipc.SocketPath())
			},
		},
	}
	resp, err := client.Get("http://cursorproxy/captures")
	if err != nil {
		return fmt.Errorf("captures: %w", err)
	}
	defer resp.Body.Close()

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return fmt.Errorf("captures: decode response: %w", err)
	}
	printCaptureNames(names)
	return nil
}

func listCapturesFromDisk(v *viper.Viper) error {
	cfg := proxyconf.LoadConfig(v)
	if cfg.CaptureDirectory == "" {
		fmt.Println("capture is not configured (capture.directory unset)")
		return nil
	}
	entries, err := os.ReadDir(cfg.CaptureDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no captures yet")
			return nil
		}
		return fmt.Errorf("captures: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Base(e.Name()))
	}
	printCaptureNames(names)
	return nil
}

func printCaptureNames(names []string) {
	if len(names) == 0 {
		fmt.Println("no captures")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}
