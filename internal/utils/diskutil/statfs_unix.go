//go:build unix

package diskutil

import (
	"fmt"
	"syscall"
)

// AvailableSpace returns the available disk space in bytes for the given path
func AvailableSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to get disk space for %s: %w", path, err)
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}
