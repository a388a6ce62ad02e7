package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/ipc"
	"github.com/cursorstudio/cursorproxy/internal/dashboard"
)

// newDashboardCmd implements only the client side of the event-feed
// interface (no terminal UI, just line-per-event output): it connects to a
// running daemon's socket and prints one line per event.
func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Stream live events from a running proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, _ := cmd.Flags().GetString("socket")
			return runDashboard(socket)
		},
	}
	cmd.Flags().String("socket", "", "path to the control socket (defaults to the standard location)")
	return cmd
}

func runDashboard(socket string) error {
	if socket == "" {
		if !ipc.IsRunning() {
			return fmt.Errorf("dashboard: no proxy running (ipc socket unreachable)")
		}
		socket = ipc.SocketPath()
	}
	fmt.Printf("connected to %s, streaming events (ctrl-c to stop)\n", socket)
	return dashboard.DialEvents("unix", socket, printEvent)
}

func printEvent(ev eventbus.Event) {
	switch ev.Tag {
	case eventbus.TagConnectionOpened:
		fmt.Printf("[%s] conn %d opened from %s\n", ev.Time.Format("15:04:05"), ev.ConnID, ev.PeerAddr)
	case eventbus.TagConnectionClosed:
		fmt.Printf("[%s] conn %d closed (alpn=%s, upstream=%s, %dms)\n",
			ev.Time.Format("15:04:05"), ev.ConnID, ev.ALPN, ev.UpstreamAddr, ev.DurationMS)
	case eventbus.TagRequestStarted:
		fmt.Printf("[%s] conn %d stream %d %s %s\n",
			ev.Time.Format("15:04:05"), ev.ConnID, ev.StreamID, ev.Method, ev.Path)
	case eventbus.TagRequestCompleted:
		fmt.Printf("[%s] conn %d stream %d done status=%d req=%dB resp=%dB %dms\n",
			ev.Time.Format("15:04:05"), ev.ConnID, ev.StreamID, ev.Status, ev.ReqBytes, ev.RespBytes, ev.DurationMS)
	case eventbus.TagCaptureSaved:
		fmt.Printf("[%s] capture saved: %s\n", ev.Time.Format("15:04:05"), ev.Endpoint)
	case eventbus.TagUpstreamAction:
		fmt.Printf("[%s] upstream: %s\n", ev.Time.Format("15:04:05"), ev.Detail)
	default:
		fmt.Printf("[%s] %s\n", ev.Time.Format("15:04:05"), ev.Tag)
	}
}
