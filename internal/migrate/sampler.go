package migrate

import "math/rand/v2"

// Sampler picks which files are checksummed in sample verification mode.
type Sampler interface {
	Sample(candidates []string, size int) []string
}

// RandomSampler selects a uniformly random subset without replacement.
type RandomSampler struct{}

// Sample returns up to size distinct candidates in random order.
func (RandomSampler) Sample(candidates []string, size int) []string {
	if size <= 0 || len(candidates) == 0 {
		return nil
	}
	if size > len(candidates) {
		size = len(candidates)
	}
	selected := make([]string, 0, size)
	for _, index := range rand.Perm(len(candidates))[:size] {
		selected = append(selected, candidates[index])
	}
	return selected
}
