// Package matcher - cost matrix between predictions and ground truth.
package matcher

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-setloss/images"
	"github.com/nvr-ai/go-setloss/models/model"
)

// CostWeights scales the three terms of the matching cost.
type CostWeights struct {
	// Class weights the negative class probability term.
	Class float64 `json:"class" yaml:"class"`
	// BBox weights the L1 distance between boxes.
	BBox float64 `json:"bbox" yaml:"bbox"`
	// GIoU weights the negative generalized IoU term.
	GIoU float64 `json:"giou" yaml:"giou"`
}

// DefaultCostWeights weighs all three terms equally.
func DefaultCostWeights() CostWeights {
	return CostWeights{Class: 1, BBox: 1, GIoU: 1}
}

// Validate rejects weights that are not positive and finite.
func (w CostWeights) Validate() error {
	for name, v := range map[string]float64{"class": w.Class, "bbox": w.BBox, "giou": w.GIoU} {
		if !(v > 0) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidWeight, "%s weight %v", name, v)
		}
	}
	return nil
}

// Softmax converts N×K logits into per-row class probabilities.
//
// The computation runs on a gorgonia expression graph. Each row is shifted by
// its maximum first so large logits cannot overflow the exponential.
//
// Arguments:
//   - logits: The raw class scores, one row per prediction.
//
// Returns:
//   - An N×K matrix whose rows sum to 1.
//   - An error if the graph cannot be built or executed.
func Softmax(logits *mat.Dense) (*mat.Dense, error) {
	rows, cols := logits.Dims()

	shifted := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		peak := floats.Max(row)
		for _, v := range row {
			shifted = append(shifted, v-peak)
		}
	}

	g := G.NewGraph()
	x := G.NewMatrix(g, tensor.Float64,
		G.WithShape(rows, cols),
		G.WithName("logits"),
		G.WithValue(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(shifted))),
	)
	probs, err := G.SoftMax(x, 1)
	if err != nil {
		return nil, errors.Wrap(err, "building softmax graph")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "running softmax graph")
	}

	data, ok := probs.Value().Data().([]float64)
	if !ok || len(data) != rows*cols {
		return nil, errors.Errorf("softmax produced %T with unexpected size", probs.Value().Data())
	}
	return mat.NewDense(rows, cols, append([]float64(nil), data...)), nil
}

// BuildCostMatrix computes the N×M matching cost between the predictions and
// targets of one image:
//
//	cost[i,j] = w.Class·(-prob[i, label[j]]) + w.BBox·L1(box[i], tbox[j]) + w.GIoU·(-GIoU(box[i], tbox[j]))
//
// Arguments:
//   - pred: The N predictions; logits are converted with Softmax.
//   - target: The M ground-truth objects.
//   - w: The cost weights.
//
// Returns:
//   - The N×M cost matrix, or nil when the image has no targets.
//   - A *model.ShapeError if counts within either set are inconsistent.
func BuildCostMatrix(pred *model.PredictionSet, target *model.TargetSet, w CostWeights) (*mat.Dense, error) {
	if pred.Logits == nil {
		return nil, model.ShapeErrorf("pred_logits", "N×(C+1) matrix", "nil")
	}
	n, k := pred.Logits.Dims()
	if n != pred.Len() {
		return nil, model.ShapeErrorf("pred_boxes", fmt.Sprintf("%d boxes", n), "%d boxes", pred.Len())
	}
	if len(target.Labels) != len(target.Boxes) {
		return nil, model.ShapeErrorf("target_boxes", fmt.Sprintf("%d boxes", len(target.Labels)), "%d boxes", len(target.Boxes))
	}

	m := target.Len()
	if m == 0 {
		return nil, nil
	}
	for j, label := range target.Labels {
		if label < 0 || label >= k {
			return nil, errors.Wrapf(model.ErrLabelOutOfRange, "target %d has label %d with %d score columns", j, label, k)
		}
	}

	probs, err := Softmax(pred.Logits)
	if err != nil {
		return nil, err
	}
	giou := images.PairwiseGIoU(pred.Boxes, target.Boxes)

	cost := mat.NewDense(n, m, nil)
	cost.Apply(func(i, j int, _ float64) float64 {
		class := -probs.At(i, target.Labels[j])
		bbox := float64(images.L1(pred.Boxes[i], target.Boxes[j]))
		return w.Class*class + w.BBox*bbox + w.GIoU*(-giou.At(i, j))
	}, cost)

	return cost, nil
}
