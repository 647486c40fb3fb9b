package migrate

import "errors"

const volumeInspectionUnsupportedMessageConstant = "volume inspection is not supported on this platform"

// ErrVolumeInspectionUnsupported is returned on platforms without free-space queries.
var ErrVolumeInspectionUnsupported = errors.New(volumeInspectionUnsupportedMessageConstant)

// VolumeInspector answers questions about the volume holding an existing path.
type VolumeInspector interface {
	AvailableBytes(path string) (uint64, error)
	VolumeIdentity(path string) (string, error)
}

// OperatingSystemVolumeInspector queries the host operating system.
type OperatingSystemVolumeInspector struct{}

// AvailableBytes reports the space available to the current user on the volume holding path.
func (OperatingSystemVolumeInspector) AvailableBytes(path string) (uint64, error) {
	return availableBytes(path)
}

// VolumeIdentity returns an opaque identifier equal for paths on the same volume.
func (OperatingSystemVolumeInspector) VolumeIdentity(path string) (string, error) {
	return volumeIdentity(path)
}
