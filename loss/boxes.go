package loss

import (
	"github.com/nvr-ai/go-setloss/images"
	"github.com/nvr-ai/go-setloss/matcher"
)

// BoxSums accumulates unnormalized box regression terms over matched pairs.
type BoxSums struct {
	// L1 is the sum of |pred - target| over all coordinates of all pairs.
	L1 float64
	// GIoU is the sum of 1 - GIoU(pred, target) over all pairs.
	GIoU float64
	// Count is the number of matched pairs.
	Count int
}

// BoxLosses sums the regression terms of one image's matched pairs.
//
// Arguments:
//   - preds: The predicted boxes of the image.
//   - targets: The ground-truth boxes of the image.
//   - pairs: The matched (prediction, target) indices.
//
// Returns:
//   - The raw sums; normalization happens once per batch.
func BoxLosses(preds, targets []images.Rect, pairs []matcher.Pair) BoxSums {
	var sums BoxSums
	for _, p := range pairs {
		pred, target := preds[p.Prediction], targets[p.Target]
		sums.L1 += float64(images.L1(pred, target))
		sums.GIoU += 1 - float64(images.CalculateGIoU(pred, target))
		sums.Count++
	}
	return sums
}

// Add returns the element-wise sum of two accumulators.
func (b BoxSums) Add(o BoxSums) BoxSums {
	return BoxSums{L1: b.L1 + o.L1, GIoU: b.GIoU + o.GIoU, Count: b.Count + o.Count}
}

// Normalized divides both sums by the matched count. With nothing matched
// both losses are 0.
func (b BoxSums) Normalized() (bbox, giou float64) {
	if b.Count == 0 {
		return 0, 0
	}
	n := float64(b.Count)
	return b.L1 / n, b.GIoU / n
}
