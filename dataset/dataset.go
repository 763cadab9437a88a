package dataset

import (
	"fmt"
	"image"
	"io/ioutil"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
)

// Dataset is a source of indexed samples.
type Dataset interface {
	Len() int
	Item(idx int) (interface{}, error)
}

// ImageMask is a loaded sample.
type ImageMask struct {
	ID    string
	Image *ts.Tensor // [3 S S] in [0, 1]
	Mask  *ts.Tensor // [1 S S] in [0, 1]
}

// Drop frees sample tensors.
func (s ImageMask) Drop() {
	if s.Image != nil {
		s.Image.MustDrop()
	}
	if s.Mask != nil {
		s.Mask.MustDrop()
	}
}

// ImagePath returns `<root>/<id>/images/<id>.png`.
func ImagePath(root, id string) string {
	return filepath.Join(root, id, "images", id+".png")
}

// MaskDir returns `<root>/<id>/masks`.
func MaskDir(root, id string) string {
	return filepath.Join(root, id, "masks")
}

// ListIDs returns sorted names of sub-directories of root. Each one is a sample.
func ListIDs(root string) ([]string, error) {
	entries, err := ioutil.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "list sample ids")
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	return ids, nil
}

// SplitIDs takes the first n ids for validation and the rest for training.
func SplitIDs(ids []string, n int) (valid, train []string) {
	if n < 0 {
		n = 0
	}
	if n > len(ids) {
		n = len(ids)
	}
	valid = append([]string{}, ids[:n]...)
	train = append([]string{}, ids[n:]...)

	return valid, train
}

// ReadMasks reads all instance masks of a sample.
func ReadMasks(root, id string) ([]image.Image, error) {
	dir := MaskDir(root, id)
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read masks of %q", id)
	}

	var masks []image.Image
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m, err := ReadImage(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read mask of %q", id)
		}
		masks = append(masks, m)
	}

	return masks, nil
}

// LoadSample reads, resizes and merges image and masks of a sample.
func LoadSample(root, id string, size int) (*image.NRGBA, *image.Gray, error) {
	img, err := ReadImage(ImagePath(root, id))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read image of %q", id)
	}
	masks, err := ReadMasks(root, id)
	if err != nil {
		return nil, nil, err
	}

	return ResizeRGB(img, size), MergeMasks(masks, size), nil
}

// NucleiDataset implements Dataset for the nuclei layout:
//
//	<root>/<id>/images/<id>.png
//	<root>/<id>/masks/*.png
type NucleiDataset struct {
	root      string
	ids       []string
	imageSize int
}

// NewNucleiDataset creates NucleiDataset.
func NewNucleiDataset(root string, ids []string, imageSize int) (*NucleiDataset, error) {
	if imageSize <= 0 {
		err := fmt.Errorf("Invalid image size: %v", imageSize)
		return nil, err
	}

	return &NucleiDataset{
		root:      root,
		ids:       ids,
		imageSize: imageSize,
	}, nil
}

// Len implements Dataset interface.
func (ds *NucleiDataset) Len() int {
	return len(ds.ids)
}

// Item implements Dataset interface. It returns ImageMask.
func (ds *NucleiDataset) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= len(ds.ids) {
		err := fmt.Errorf("Index out of range: %v (len %v)", idx, len(ds.ids))
		return nil, err
	}
	id := ds.ids[idx]
	img, mask, err := LoadSample(ds.root, id, ds.imageSize)
	if err != nil {
		return nil, err
	}

	return ImageMask{
		ID:    id,
		Image: ImageTensor(img),
		Mask:  MaskTensor(mask),
	}, nil
}
