//go:build !linux && !darwin && !freebsd && !windows

package migrate

func availableBytes(string) (uint64, error) {
	return 0, ErrVolumeInspectionUnsupported
}

func volumeIdentity(string) (string, error) {
	return "", ErrVolumeInspectionUnsupported
}
