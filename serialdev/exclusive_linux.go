//go:build linux
// +build linux

package serialdev

import "golang.org/x/sys/unix"

// lockExclusive asks the kernel for exclusive access to the underlying tty
// (TIOCEXCL), matching NMEASerialDevice's fcntl.ioctl(fd, TIOCEXCL) call.
// Best-effort: a device that doesn't support the ioctl is still usable, so
// failure is not fatal to opening the port.
func lockExclusive(fd int) error {
	return unix.IoctlSetInt(fd, unix.TIOCEXCL, 0)
}
