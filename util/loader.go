package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-setloss/images"
	"github.com/nvr-ai/go-setloss/models/model"
)

// SampleRecord is the on-disk JSON form of one image of a batch.
type SampleRecord struct {
	// Frame orders samples loaded from a directory.
	Frame int `json:"frame"`
	// Logits holds N rows of C+1 class scores.
	Logits [][]float64 `json:"logits"`
	// Boxes holds N corner boxes [x1, y1, x2, y2].
	Boxes [][]float64 `json:"boxes"`
	// Embeddings holds N rows of D values. Optional.
	Embeddings [][]float64 `json:"embeddings,omitempty"`
	// TargetLabels holds the M ground-truth classes.
	TargetLabels []int `json:"target_labels"`
	// TargetBoxes holds the M ground-truth corner boxes.
	TargetBoxes [][]float64 `json:"target_boxes"`
}

// SampleFile is a decoded record and where it came from.
type SampleFile struct {
	// Path is the file the record was read from.
	Path string
	// Frame is the frame number of the record.
	Frame int
	// Sample is the validated sample built from the record.
	Sample *model.Sample
}

// LoadBatch reads samples from a JSON file or from every .json file of a
// directory.
//
// A file holds either one SampleRecord or an array of them. Records are sorted
// by frame; records with equal frames keep their file order.
//
// Arguments:
// - path: A JSON file or a directory of JSON files.
//
// Returns:
// - []SampleFile: The samples in frame order.
// - error: Error if reading, decoding or shape checks fail.
func LoadBatch(path string) ([]SampleFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading batch %s", path)
	}

	paths := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}

		paths = paths[:0]
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}

	var files []SampleFile
	for _, p := range paths {
		records, err := readRecords(p)
		if err != nil {
			return nil, err
		}
		for i, r := range records {
			s, err := r.Sample()
			if err != nil {
				return nil, errors.Wrapf(err, "%s: record %d", p, i)
			}
			files = append(files, SampleFile{Path: p, Frame: r.Frame, Sample: s})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}

// Samples returns the samples of files in order.
func Samples(files []SampleFile) []*model.Sample {
	out := make([]*model.Sample, len(files))
	for i, f := range files {
		out[i] = f.Sample
	}
	return out
}

// readRecords decodes a file holding one record or an array of records.
func readRecords(path string) ([]SampleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []SampleRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
		return records, nil
	}

	var record SampleRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return []SampleRecord{record}, nil
}

// Sample converts the record into [1, N, K] tensors and builds a model.Sample.
func (r *SampleRecord) Sample() (*model.Sample, error) {
	logits, err := batchTensor(r.Logits, "pred_logits", 0)
	if err != nil {
		return nil, err
	}
	boxes, err := batchTensor(r.Boxes, "pred_boxes", 4)
	if err != nil {
		return nil, err
	}

	var embeddings *tensor.Dense
	if len(r.Embeddings) > 0 {
		if embeddings, err = batchTensor(r.Embeddings, "pred_embeddings", 0); err != nil {
			return nil, err
		}
	}

	targets := make([]images.Rect, len(r.TargetBoxes))
	for i, b := range r.TargetBoxes {
		if len(b) != 4 {
			return nil, model.ShapeErrorf("target_boxes", "4 coordinates", "%d coordinates in box %d", len(b), i)
		}
		targets[i] = images.Rect{X1: float32(b[0]), Y1: float32(b[1]), X2: float32(b[2]), Y2: float32(b[3])}
	}

	return model.NewSample(logits, boxes, embeddings, r.TargetLabels, targets)
}

// batchTensor packs equal-length rows into a [1, N, K] tensor. A positive
// width fixes K.
func batchTensor(rows [][]float64, field string, width int) (*tensor.Dense, error) {
	if len(rows) == 0 {
		return nil, model.ShapeErrorf(field, "at least one row", "0 rows")
	}

	k := len(rows[0])
	if width > 0 {
		k = width
	}
	backing := make([]float64, 0, len(rows)*k)
	for i, row := range rows {
		if len(row) != k || k == 0 {
			return nil, model.ShapeErrorf(field, fmt.Sprintf("%d values per row", k), "%d values in row %d", len(row), i)
		}
		backing = append(backing, row...)
	}

	return tensor.New(tensor.WithShape(1, len(rows), k), tensor.WithBacking(backing)), nil
}
