// cursorproxy: a transparent TLS-terminating HTTP/2 interception proxy.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cursorproxy",
		Short: "Transparent TLS-terminating interception proxy",
		Long: `cursorproxy masquerades as a configured upstream host, terminates
client TLS with locally minted leaf certificates, re-originates TLS and
HTTP/2 to the real upstream, and optionally edits the first gRPC message
of selected chat RPCs.

Run "cursorproxy init" once to generate CA material, "cursorproxy start"
to run the proxy, and "cursorproxy trust-ca" to print or export the CA
certificate for installation into your system's trust store.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newTrustCACmd(),
		newCleanupCmd(),
		newInjectCmd(),
		newCapturesCmd(),
		newDashboardCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("cursorproxy %s\n", Version)
		},
	}
}
