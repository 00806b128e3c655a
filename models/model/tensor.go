package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-setloss/images"
)

// NewSample builds a Sample from the raw network tensors of one image.
//
// Prediction tensors are shaped [1, N, K] as the detector emits them; [N, K]
// is accepted as well. Both float32 and float64 tensors are supported.
//
// Arguments:
//   - logits: Class scores, [1, N, C+1].
//   - boxes: Predicted corner boxes, [1, N, 4].
//   - embeddings: Optional embeddings, [1, N, D]. May be nil.
//   - labels: Ground-truth class labels (M entries).
//   - targetBoxes: Ground-truth boxes (M entries).
//
// Returns:
//   - The sample, or a *ShapeError describing the first inconsistency.
//
// Example:
//
// ```go
//
//	logits := tensor.New(tensor.WithShape(1, 100, 92), tensor.WithBacking(scores))
//	boxes := tensor.New(tensor.WithShape(1, 100, 4), tensor.WithBacking(coords))
//	sample, err := model.NewSample(logits, boxes, nil, labels, targets)
//
// ```
func NewSample(logits, boxes, embeddings *tensor.Dense, labels []int, targetBoxes []images.Rect) (*Sample, error) {
	if len(labels) != len(targetBoxes) {
		return nil, ShapeErrorf("target_boxes", fmt.Sprintf("%d boxes", len(labels)), "%d boxes", len(targetBoxes))
	}

	scores, err := toMatrix(logits, "pred_logits")
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()

	coords, err := toMatrix(boxes, "pred_boxes")
	if err != nil {
		return nil, err
	}
	if rows, cols := coords.Dims(); rows != n || cols != 4 {
		return nil, ShapeErrorf("pred_boxes", fmt.Sprintf("[1 %d 4]", n), "%v", boxes.Shape())
	}

	var emb *mat.Dense
	if embeddings != nil {
		emb, err = toMatrix(embeddings, "pred_embeddings")
		if err != nil {
			return nil, err
		}
		if rows, _ := emb.Dims(); rows != n {
			return nil, ShapeErrorf("pred_embeddings", fmt.Sprintf("%d rows", n), "%v", embeddings.Shape())
		}
	}

	rects := make([]images.Rect, n)
	for i := range rects {
		rects[i] = images.Rect{
			X1: float32(coords.At(i, 0)),
			Y1: float32(coords.At(i, 1)),
			X2: float32(coords.At(i, 2)),
			Y2: float32(coords.At(i, 3)),
		}
	}

	return &Sample{
		Predictions: PredictionSet{Logits: scores, Boxes: rects, Embeddings: emb},
		Targets: TargetSet{
			Labels: append([]int(nil), labels...),
			Boxes:  append([]images.Rect(nil), targetBoxes...),
		},
	}, nil
}

// toMatrix copies a [1, N, K] or [N, K] float tensor into an N×K gonum matrix.
func toMatrix(t *tensor.Dense, field string) (*mat.Dense, error) {
	if t == nil {
		return nil, ShapeErrorf(field, "[1 N K] tensor", "nil")
	}

	shape := t.Shape()
	var n, k int
	switch {
	case len(shape) == 3 && shape[0] == 1:
		n, k = shape[1], shape[2]
	case len(shape) == 2:
		n, k = shape[0], shape[1]
	default:
		return nil, ShapeErrorf(field, "[1 N K]", "%v", shape)
	}
	if n < 1 || k < 1 {
		return nil, ShapeErrorf(field, "at least one prediction", "%v", shape)
	}

	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			var (
				v   interface{}
				err error
			)
			if len(shape) == 3 {
				v, err = t.At(0, i, j)
			} else {
				v, err = t.At(i, j)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", field)
			}

			switch x := v.(type) {
			case float32:
				out.Set(i, j, float64(x))
			case float64:
				out.Set(i, j, x)
			default:
				return nil, errors.Errorf("%s: unsupported dtype %v", field, t.Dtype())
			}
		}
	}
	return out, nil
}

// StackRows packs row vectors into a K×D float64 tensor. It returns nil when
// there are no rows.
func StackRows(rows [][]float64) *tensor.Dense {
	if len(rows) == 0 {
		return nil
	}

	d := len(rows[0])
	backing := make([]float64, 0, len(rows)*d)
	for _, r := range rows {
		backing = append(backing, r...)
	}
	return tensor.New(tensor.WithShape(len(rows), d), tensor.WithBacking(backing))
}

// LabelTensor packs labels into a 1-D int tensor. It returns nil for no labels.
func LabelTensor(labels []int) *tensor.Dense {
	if len(labels) == 0 {
		return nil
	}
	return tensor.New(tensor.WithShape(len(labels)), tensor.WithBacking(append([]int(nil), labels...)))
}
