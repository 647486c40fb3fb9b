package migrate

import (
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Checksum is a hex-encoded xxHash64 digest of file content.
type Checksum string

// ChecksumFile streams path through xxHash64.
func ChecksumFile(fileSystem afero.Fs, path string) (Checksum, error) {
	file, openError := fileSystem.Open(path)
	if openError != nil {
		return "", openError
	}
	defer file.Close()

	digest := xxhash.New()
	if _, copyError := io.Copy(digest, file); copyError != nil {
		return "", copyError
	}
	return encodeDigest(digest), nil
}

func encodeDigest(digest *xxhash.Digest) Checksum {
	return Checksum(hex.EncodeToString(digest.Sum(nil)))
}

// ChecksumManifest maps root-relative file paths to their digests.
type ChecksumManifest map[string]Checksum
