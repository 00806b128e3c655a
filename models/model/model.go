// Package model - Per-image prediction and ground-truth sets consumed by the loss.
package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-setloss/images"
)

// PredictionSet holds the N predictions the network produced for one image.
type PredictionSet struct {
	// Logits is the N×(C+1) class-score matrix; column C is "no object".
	Logits *mat.Dense
	// Boxes holds one predicted box per row of Logits.
	Boxes []images.Rect
	// Embeddings is the optional N×D embedding matrix. When nil the class
	// scores are used as embeddings.
	Embeddings *mat.Dense
}

// Len returns the number of predictions.
func (p *PredictionSet) Len() int {
	return len(p.Boxes)
}

// EmbeddingRows returns the matrix the contrastive term reads embeddings from.
func (p *PredictionSet) EmbeddingRows() *mat.Dense {
	if p.Embeddings != nil {
		return p.Embeddings
	}
	return p.Logits
}

// TargetSet holds the M ground-truth objects of one image. M may be zero.
type TargetSet struct {
	// Labels are class indices in [0, C-1].
	Labels []int
	// Boxes holds one box per label.
	Boxes []images.Rect
}

// Len returns the number of ground-truth objects.
func (t *TargetSet) Len() int {
	return len(t.Labels)
}

// Sample pairs the predictions and targets of a single image.
type Sample struct {
	Predictions PredictionSet
	Targets     TargetSet
}

// Validate checks internal consistency of the sample.
//
// Arguments:
//   - numClasses: The number of real classes C. The logits must have C+1 columns.
//
// Returns:
//   - A *ShapeError for count or shape mismatches, ErrLabelOutOfRange for
//     labels outside [0, C-1], nil otherwise.
func (s *Sample) Validate(numClasses int) error {
	p := &s.Predictions
	if p.Logits == nil {
		return ShapeErrorf("pred_logits", "N×(C+1) matrix", "nil")
	}

	n, k := p.Logits.Dims()
	if n != p.Len() {
		return ShapeErrorf("pred_boxes", fmt.Sprintf("%d boxes", n), "%d boxes", p.Len())
	}
	if numClasses > 0 && k != numClasses+1 {
		return ShapeErrorf("pred_logits", fmt.Sprintf("%d classes", numClasses+1), "%d classes", k)
	}
	if p.Embeddings != nil {
		if rows, _ := p.Embeddings.Dims(); rows != n {
			return ShapeErrorf("pred_embeddings", fmt.Sprintf("%d rows", n), "%d rows", rows)
		}
	}

	t := &s.Targets
	if len(t.Labels) != len(t.Boxes) {
		return ShapeErrorf("target_boxes", fmt.Sprintf("%d boxes", len(t.Labels)), "%d boxes", len(t.Boxes))
	}
	if numClasses > 0 {
		for j, label := range t.Labels {
			if label < 0 || label >= numClasses {
				return errors.Wrapf(ErrLabelOutOfRange, "target %d has label %d, want [0, %d]", j, label, numClasses-1)
			}
		}
	}

	return nil
}
