package dataset

import (
	"io/ioutil"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// SampleInfo describes a sample on disk before resizing.
type SampleInfo struct {
	ID     string `dataframe:"id"`
	Width  int    `dataframe:"width"`
	Height int    `dataframe:"height"`
	Masks  int    `dataframe:"masks"`
}

// Inspect reads image sizes and instance counts of samples.
func Inspect(root string, ids []string) ([]SampleInfo, error) {
	var infos []SampleInfo
	for _, id := range ids {
		img, err := ReadImage(ImagePath(root, id))
		if err != nil {
			return nil, errors.Wrapf(err, "inspect %q", id)
		}
		files, err := ioutil.ReadDir(MaskDir(root, id))
		if err != nil {
			return nil, errors.Wrapf(err, "inspect %q", id)
		}
		n := 0
		for _, f := range files {
			if !f.IsDir() {
				n++
			}
		}
		b := img.Bounds()
		infos = append(infos, SampleInfo{
			ID:     id,
			Width:  b.Dx(),
			Height: b.Dy(),
			Masks:  n,
		})
	}

	return infos, nil
}

// InfoFrame loads sample infos into a dataframe with columns
// id, width, height, masks.
func InfoFrame(infos []SampleInfo) dataframe.DataFrame {
	return dataframe.LoadStructs(infos)
}
