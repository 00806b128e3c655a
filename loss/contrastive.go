package loss

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-setloss/models/model"
)

const (
	// normFloor keeps zero embeddings from dividing by zero when normalized.
	normFloor = 1e-12
	// logFloor bounds log(0) in the binary cross-entropy.
	logFloor = -100.0
)

// Similarities returns the K×K cosine similarity matrix of the embeddings,
// clamped to [0, 1].
//
// Arguments:
//   - embeddings: K vectors of equal dimension.
//
// Returns:
//   - The similarity matrix, or nil for no embeddings.
//   - A *model.ShapeError if the dimensions differ.
func Similarities(embeddings [][]float64) (*mat.Dense, error) {
	k := len(embeddings)
	if k == 0 {
		return nil, nil
	}

	d := len(embeddings[0])
	if d == 0 {
		return nil, model.ShapeErrorf("embeddings", "at least one dimension", "0")
	}

	unit := mat.NewDense(k, d, nil)
	for i, e := range embeddings {
		if len(e) != d {
			return nil, model.ShapeErrorf("embeddings", fmt.Sprintf("%d dimensions", d), "%d dimensions at row %d", len(e), i)
		}
		row := unit.RawRowView(i)
		copy(row, e)
		floats.Scale(1/math.Max(floats.Norm(row, 2), normFloor), row)
	}

	sims := mat.NewDense(k, k, nil)
	sims.Mul(unit, unit.T())
	sims.Apply(func(_, _ int, v float64) float64 {
		return math.Min(1, math.Max(0, v))
	}, sims)
	return sims, nil
}

// binaryCrossEntropy is -(t·log(s) + (1-t)·log(1-s)) with both logs floored
// at -100.
func binaryCrossEntropy(s, t float64) float64 {
	logS := math.Max(math.Log(s), logFloor)
	logNotS := math.Max(math.Log(1-s), logFloor)
	return -(t*logS + (1-t)*logNotS)
}

// Contrastive computes the push-pull embedding loss of a batch.
//
// For every ordered pair (a, b), self pairs included, the target T is 1 when
// the labels agree and 0 otherwise. The clamped cosine similarity S is
// sharpened to S^gain where T is 1 and to S^(1/gain) where T is 0, scored with
// binary cross-entropy against T, and modulated focal-style:
//
//	term = (1 - exp(-bce))² · bce
//
// Arguments:
//   - embeddings: The K non-background embeddings of the batch.
//   - labels: Their resolved labels.
//   - gain: The sharpening exponent.
//   - batchSize: The number of images; the sum is divided by batchSize².
//
// Returns:
//   - The loss, 0 when there are no embeddings.
//   - A *model.ShapeError for mismatched inputs.
func Contrastive(embeddings [][]float64, labels []int, gain float64, batchSize int) (float64, error) {
	if len(embeddings) != len(labels) {
		return 0, model.ShapeErrorf("labels", fmt.Sprintf("%d labels", len(embeddings)), "%d labels", len(labels))
	}
	if batchSize < 1 {
		return 0, errors.Wrapf(ErrEmptyBatch, "batch size %d", batchSize)
	}

	sims, err := Similarities(embeddings)
	if err != nil || sims == nil {
		return 0, err
	}

	var total float64
	for a := range labels {
		for b := range labels {
			s := sims.At(a, b)
			var t float64
			if labels[a] == labels[b] {
				t = 1
				s = math.Pow(s, gain)
			} else {
				s = math.Pow(s, 1/gain)
			}

			bce := binaryCrossEntropy(s, t)
			focal := 1 - math.Exp(-bce)
			total += focal * focal * bce
		}
	}

	return total / float64(batchSize*batchSize), nil
}
