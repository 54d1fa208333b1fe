//go:build !windows

package updater

import (
	"os"
	"syscall"
)

func relaunch(exe string, args []string) error {
	argv := append([]string{exe}, args...)
	return syscall.Exec(exe, argv, os.Environ())
}
