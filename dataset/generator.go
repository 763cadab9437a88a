package dataset

import (
	"fmt"

	ts "github.com/sugarme/gotch/tensor"
)

// Batch is a stacked batch of samples.
type Batch struct {
	IDs []string
	X   *ts.Tensor // [B 3 S S]
	Y   *ts.Tensor // [B 1 S S]
}

// Size returns number of samples in batch.
func (b *Batch) Size() int {
	return len(b.IDs)
}

// Drop frees batch tensors.
func (b *Batch) Drop() {
	b.X.MustDrop()
	b.Y.MustDrop()
}

// Generator produces batches on demand, given a batch index.
// Batches are loaded from disk on each call, the dataset is never held in memory.
type Generator struct {
	ds      Dataset
	sampler *BatchSampler
}

// NewGenerator creates Generator. Without shuffle, batch i holds samples
// [i*batchSize, min((i+1)*batchSize, n)) and the last batch may be short.
func NewGenerator(ds Dataset, batchSize int, shuffle bool, seed int64) (*Generator, error) {
	s, err := NewBatchSampler(ds.Len(), batchSize, false, shuffle, seed)
	if err != nil {
		return nil, err
	}

	return &Generator{ds: ds, sampler: s}, nil
}

// Len returns number of batches: ceil(n/batchSize).
func (g *Generator) Len() int {
	return g.sampler.Len()
}

// NumSamples returns number of samples.
func (g *Generator) NumSamples() int {
	return g.ds.Len()
}

// BatchSize returns nominal batch size.
func (g *Generator) BatchSize() int {
	return g.sampler.BatchSize()
}

// Reset re-shuffles sample order if the generator shuffles.
func (g *Generator) Reset() {
	g.sampler.Reset()
}

// Batch loads and stacks batch at index.
func (g *Generator) Batch(index int) (*Batch, error) {
	indices, err := g.sampler.Batch(index)
	if err != nil {
		return nil, err
	}

	var (
		ids       []string
		img, mask []ts.Tensor
	)
	drop := func() {
		for i := range img {
			img[i].MustDrop()
			mask[i].MustDrop()
		}
	}

	for _, idx := range indices {
		item, err := g.ds.Item(idx)
		if err != nil {
			drop()
			return nil, err
		}
		s, ok := item.(ImageMask)
		if !ok {
			drop()
			err = fmt.Errorf("Expected item of type ImageMask. Got %T", item)
			return nil, err
		}
		ids = append(ids, s.ID)
		img = append(img, *s.Image)
		mask = append(mask, *s.Mask)
	}

	x := ts.MustStack(img, 0)
	y := ts.MustStack(mask, 0)
	drop()

	return &Batch{IDs: ids, X: x, Y: y}, nil
}

// DataLoader iterates over batches of a Generator.
type DataLoader struct {
	gen   *Generator
	steps int
	next  int
}

// NewDataLoader creates DataLoader yielding at most steps batches.
// steps <= 0 or larger than generator length means all batches.
func NewDataLoader(gen *Generator, steps int) *DataLoader {
	if steps <= 0 || steps > gen.Len() {
		steps = gen.Len()
	}

	return &DataLoader{gen: gen, steps: steps}
}

// Steps returns number of batches per pass.
func (dl *DataLoader) Steps() int {
	return dl.steps
}

// HasNext returns whether there are more batches in this pass.
func (dl *DataLoader) HasNext() bool {
	return dl.next < dl.steps
}

// Next loads next batch.
func (dl *DataLoader) Next() (*Batch, error) {
	if !dl.HasNext() {
		err := fmt.Errorf("DataLoader exhausted after %v batches", dl.steps)
		return nil, err
	}
	b, err := dl.gen.Batch(dl.next)
	dl.next++

	return b, err
}

// Reset starts a new pass, re-shuffling the generator.
func (dl *DataLoader) Reset() {
	dl.gen.Reset()
	dl.next = 0
}
