package loss

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-setloss/images"
	"github.com/nvr-ai/go-setloss/matcher"
)

func TestBoxLosses(t *testing.T) {
	preds := []images.Rect{
		{X1: 0, Y1: 0, X2: 1, Y2: 1},
		{X1: 2, Y1: 2, X2: 3, Y2: 3},
		{X1: 0, Y1: 0, X2: 2, Y2: 2},
	}
	targets := []images.Rect{
		{X1: 0, Y1: 0, X2: 1, Y2: 1},
		{X1: 1, Y1: 1, X2: 3, Y2: 3},
	}

	sums := BoxLosses(preds, targets, []matcher.Pair{{Prediction: 0, Target: 0}, {Prediction: 2, Target: 1}})

	assert.Equal(t, 2, sums.Count)
	assert.InDelta(t, 4.0, sums.L1, 1e-6)
	// Pair 0 is a perfect match; pair 1 has IoU 1/7 and an enclosing area of 9.
	assert.InDelta(t, 1-(1.0/7.0-2.0/9.0), sums.GIoU, 1e-6)

	bbox, giou := sums.Normalized()
	assert.InDelta(t, 2.0, bbox, 1e-6)
	assert.InDelta(t, (1-(1.0/7.0-2.0/9.0))/2, giou, 1e-6)
}

func TestBoxSumsNormalizedWithoutMatches(t *testing.T) {
	var sums BoxSums
	sums = sums.Add(BoxLosses(nil, nil, nil))

	bbox, giou := sums.Normalized()
	assert.Equal(t, 0.0, bbox)
	assert.Equal(t, 0.0, giou)
}

func TestBoxSumsAdd(t *testing.T) {
	a := BoxSums{L1: 1, GIoU: 0.5, Count: 1}
	b := BoxSums{L1: 3, GIoU: 1.5, Count: 3}

	bbox, giou := a.Add(b).Normalized()
	assert.Equal(t, 1.0, bbox, "normalization divides by the batch count, not per image")
	assert.Equal(t, 0.5, giou)
}
