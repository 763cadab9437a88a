package dataset

import (
	"fmt"
	"math/rand"
)

// BatchSampler groups sample indices into batches.
type BatchSampler struct {
	n         int
	batchSize int
	dropLast  bool
	shuffle   bool
	rng       *rand.Rand
	batches   [][]int
}

// NewBatchSampler creates BatchSampler over n samples. When dropLast is false
// the last batch holds the remainder and may be short. When shuffle is set,
// samples are permuted on creation and on each Reset.
func NewBatchSampler(n, batchSize int, dropLast, shuffle bool, seed int64) (*BatchSampler, error) {
	if batchSize <= 0 {
		err := fmt.Errorf("Invalid batch size: %v", batchSize)
		return nil, err
	}
	if n < 0 {
		err := fmt.Errorf("Invalid number of samples: %v", n)
		return nil, err
	}

	s := &BatchSampler{
		n:         n,
		batchSize: batchSize,
		dropLast:  dropLast,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
	s.Reset()

	return s, nil
}

// Reset rebuilds batches, re-shuffling samples if shuffle is set.
func (s *BatchSampler) Reset() {
	indices := make([]int, s.n)
	for i := range indices {
		indices[i] = i
	}
	if s.shuffle {
		s.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	var batches [][]int
	for start := 0; start < s.n; start += s.batchSize {
		end := start + s.batchSize
		if end > s.n {
			if s.dropLast {
				break
			}
			end = s.n
		}
		batches = append(batches, indices[start:end])
	}
	s.batches = batches
}

// Len returns number of batches.
func (s *BatchSampler) Len() int {
	return len(s.batches)
}

// BatchSize returns nominal batch size.
func (s *BatchSampler) BatchSize() int {
	return s.batchSize
}

// Batch returns sample indices of batch at index.
func (s *BatchSampler) Batch(index int) ([]int, error) {
	if index < 0 || index >= len(s.batches) {
		err := fmt.Errorf("Batch index out of range: %v (len %v)", index, len(s.batches))
		return nil, err
	}

	return s.batches[index], nil
}
