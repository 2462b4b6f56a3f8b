//go:build windows

package sysctl

import "os/exec"

func reboot() error {
	return exec.Command("shutdown", "/r", "/t", "0").Run()
}

func shutdown() error {
	return exec.Command("shutdown", "/s", "/t", "0").Run()
}
