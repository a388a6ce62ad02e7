package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// pidFilePath is where the running proxy's process id is recorded so `stop`
// can find it without an IPC round-trip.
func pidFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cursorproxy", "proxy.pid"), nil
}

func writePIDFile() error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile() {
	path, err := pidFilePath()
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running proxy process",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStop()
		},
	}
}

func runStop() error {
	path, err := pidFilePath()
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no proxy running (no pid file found)")
			return nil
		}
		return fmt.Errorf("stop: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("stop: malformed pid file: %w", err)
	}

	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("stop: signal pid %d: %w", pid, err)
	}
	_ = os.Remove(path)
	fmt.Printf("stopped proxy (pid %d)\n", pid)
	return nil
}
