package datasets

import (
	"math"
	"math/rand"
)

// Split carves the training set into train/validation partitions. Indices
// are shuffled under the seed when requested; the first
// floor(validFraction*N) indices become the validation set and the rest the
// training set. Deterministic for a fixed seed.
func Split(full Set, validFraction float64, shuffle bool, seed int64) (train, valid Set) {
	n := len(full)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	nValid := int(math.Floor(validFraction * float64(n)))
	valid = make(Set, 0, nValid)
	train = make(Set, 0, n-nValid)
	for _, idx := range indices[:nValid] {
		valid = append(valid, full[idx])
	}
	for _, idx := range indices[nValid:] {
		train = append(train, full[idx])
	}
	return train, valid
}
