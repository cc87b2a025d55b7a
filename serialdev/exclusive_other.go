//go:build !linux
// +build !linux

package serialdev

// lockExclusive is a no-op outside Linux: TIOCEXCL has no portable
// equivalent, and the original bridge only ever ran on Linux marine
// computers.
func lockExclusive(fd int) error {
	return nil
}
