//go:build !windows

package main

import "syscall"

func terminateProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
