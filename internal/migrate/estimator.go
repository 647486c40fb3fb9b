package migrate

import (
	"math"
	"time"
)

const (
	bytesPerMebibyteConstant = 1024 * 1024
	// SameVolumeThroughput is the assumed copy rate within one volume, in bytes per second.
	SameVolumeThroughput = 100 * bytesPerMebibyteConstant
	// CrossVolumeThroughput is the assumed copy rate between volumes, in bytes per second.
	CrossVolumeThroughput = 50 * bytesPerMebibyteConstant
	// MinimumEstimate is the floor for every estimate.
	MinimumEstimate = time.Second
)

// EstimateDuration predicts how long copying totalBytes takes. The result is never below MinimumEstimate.
func EstimateDuration(totalBytes int64, sameVolume bool) time.Duration {
	if totalBytes <= 0 {
		return MinimumEstimate
	}
	throughput := float64(CrossVolumeThroughput)
	if sameVolume {
		throughput = float64(SameVolumeThroughput)
	}
	seconds := float64(totalBytes) / throughput
	if seconds >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	estimate := time.Duration(seconds * float64(time.Second))
	if estimate < MinimumEstimate {
		return MinimumEstimate
	}
	return estimate
}
