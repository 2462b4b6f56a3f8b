//go:build linux

package sysctl

import "os/exec"

func reboot() error {
	return exec.Command("sudo", "systemctl", "reboot").Run()
}

func shutdown() error {
	return exec.Command("sudo", "systemctl", "poweroff").Run()
}
