//go:build linux || darwin || freebsd

package migrate

import (
	"strconv"

	"golang.org/x/sys/unix"
)

func availableBytes(path string) (uint64, error) {
	var statistics unix.Statfs_t
	if statError := unix.Statfs(path, &statistics); statError != nil {
		return 0, statError
	}
	return uint64(statistics.Bavail) * uint64(statistics.Bsize), nil
}

func volumeIdentity(path string) (string, error) {
	var statistics unix.Stat_t
	if statError := unix.Stat(path, &statistics); statError != nil {
		return "", statError
	}
	return strconv.FormatUint(uint64(statistics.Dev), 10), nil
}
