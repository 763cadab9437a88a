package rle

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// Column names of labels and submission files.
const (
	ImageIDCol       = "ImageId"
	EncodedPixelsCol = "EncodedPixels"
)

// Row is a line of labels or submission file: one instance of an image.
type Row struct {
	ImageID       string `dataframe:"ImageId"`
	EncodedPixels string `dataframe:"EncodedPixels"`
}

// ReadLabels reads run-length encoded instances from CSV and returns map of
// image id to its instances encodings.
func ReadLabels(r io.Reader) (map[string][]RLE, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "read labels")
	}
	for _, col := range []string{ImageIDCol, EncodedPixelsCol} {
		found := false
		for _, n := range df.Names() {
			if n == col {
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("Missing column %q in labels", col)
		}
	}

	ids := df.Col(ImageIDCol).Records()
	encodings := df.Col(EncodedPixelsCol).Records()
	labels := make(map[string][]RLE, len(ids))
	for i, id := range ids {
		enc := encodings[i]
		// gota reports missing values as NaN
		if enc == "NaN" || enc == "NA" {
			enc = ""
		}
		r, err := Parse(enc)
		if err != nil {
			return nil, errors.Wrapf(err, "parse encoding of %q at row %v", id, i+1)
		}
		// image without nuclei: known id, no instance
		if len(r) == 0 {
			if _, ok := labels[id]; !ok {
				labels[id] = nil
			}
			continue
		}
		labels[id] = append(labels[id], r)
	}

	return labels, nil
}

// ReadLabelsFile reads labels from CSV file.
func ReadLabelsFile(filename string) (map[string][]RLE, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadLabels(f)
}

// WriteSubmission writes rows as CSV with header `ImageId,EncodedPixels`.
func WriteSubmission(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "%v,%v\n", ImageIDCol, EncodedPixelsCol)
		return err
	}
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return errors.Wrap(df.Err, "build submission")
	}

	return df.WriteCSV(w)
}

// WriteSubmissionFile writes rows to a CSV file.
func WriteSubmissionFile(filename string, rows []Row) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteSubmission(f, rows); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Rows encodes each instance of mask as a submission row. An image without
// instances still gets a row with empty encoding.
func Rows(id string, instances []*image.Gray) []Row {
	if len(instances) == 0 {
		return []Row{{ImageID: id}}
	}

	rows := make([]Row, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, Row{ImageID: id, EncodedPixels: Encode(inst).String()})
	}

	return rows
}
