//go:build windows

package migrate

import (
	"strings"

	"golang.org/x/sys/windows"
)

const volumePathBufferLengthConstant = windows.MAX_PATH + 1

func availableBytes(path string) (uint64, error) {
	pathPointer, conversionError := windows.UTF16PtrFromString(path)
	if conversionError != nil {
		return 0, conversionError
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if queryError := windows.GetDiskFreeSpaceEx(pathPointer, &freeBytesAvailable, &totalBytes, &totalFreeBytes); queryError != nil {
		return 0, queryError
	}
	return freeBytesAvailable, nil
}

func volumeIdentity(path string) (string, error) {
	pathPointer, conversionError := windows.UTF16PtrFromString(path)
	if conversionError != nil {
		return "", conversionError
	}
	volumePath := make([]uint16, volumePathBufferLengthConstant)
	if queryError := windows.GetVolumePathName(pathPointer, &volumePath[0], uint32(len(volumePath))); queryError != nil {
		return "", queryError
	}
	return strings.ToLower(windows.UTF16ToString(volumePath)), nil
}
