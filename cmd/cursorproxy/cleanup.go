package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Stop the proxy and optionally remove its generated state",
		Long: `Stops a running proxy (equivalent to "stop"). With --all, also removes
the ~/.cursorproxy directory, which holds the pid file. The CA material, the
injection policy, and captures are removed only when ca.cert_path,
ca.key_path, injection.policy_path, and capture.directory point inside
~/.cursorproxy; by default the CA files and the policy file are in the
working directory and are left in place.

The iptables rules that redirect traffic to this proxy are managed by an
external collaborator and are out of scope here; this command only cleans
up state this binary itself owns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return runCleanup(all)
		},
	}
	cmd.Flags().Bool("all", false, "also remove all generated state under ~/.cursorproxy")
	return cmd
}

func runCleanup(all bool) error {
	if err := runStop(); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup: stop: %v\n", err)
	}

	if !all {
		fmt.Println("cleanup complete")
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	dir := filepath.Join(home, ".cursorproxy")
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cleanup: remove %s: %w", dir, err)
		}
		fmt.Printf("removed %s\n", dir)
	}
	fmt.Println("cleanup complete")
	return nil
}
