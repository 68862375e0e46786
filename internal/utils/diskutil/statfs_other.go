//go:build !unix

package diskutil

import "errors"

var ErrUnsupported = errors.New("disk space query not supported on this platform")

func AvailableSpace(path string) (uint64, error) {
	return 0, ErrUnsupported
}
