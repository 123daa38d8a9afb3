//go:build !windows

package preview

import "golang.org/x/sys/unix"

func markerExists(path string) bool {
	return unix.Access(path, unix.F_OK) == nil
}
