package images

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIoU_Correctness validates the IoU implementation against known test cases.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
			epsilon:  0,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
			epsilon:  0,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
			epsilon:  0,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // 2500 / 17500
			epsilon:  0.0001,
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25,
			epsilon:  0.0001,
		},
		{
			name:     "Normalized coordinates",
			r1:       Rect{0.1, 0.1, 0.5, 0.5},
			r2:       Rect{0.1, 0.1, 0.5, 0.3},
			expected: 0.5,
			epsilon:  0.0001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, float64(tt.epsilon), "IoU mismatch")

			// IoU(A, B) should equal IoU(B, A).
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6, "IoU should be symmetric")
		})
	}
}

func TestGIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{"Identical rectangles", Rect{0, 0, 1, 1}, Rect{0, 0, 1, 1}, 1.0},
		{"Disjoint diagonal", Rect{0, 0, 1, 1}, Rect{2, 2, 3, 3}, -7.0 / 9.0},
		{"Touching edges", Rect{0, 0, 1, 1}, Rect{1, 0, 2, 1}, 0.0},
		{"One inside other", Rect{0, 0, 4, 4}, Rect{1, 1, 3, 3}, 0.25},
		{"Half overlap", Rect{0, 0, 2, 2}, Rect{1, 1, 3, 3}, 1.0/7.0 - 2.0/9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateGIoU(tt.r1, tt.r2), 1e-5)
			assert.InDelta(t, tt.expected, CalculateGIoU(tt.r2, tt.r1), 1e-5)
		})
	}
}

// TestIoU_EdgeCases checks that degenerate model output never leaks NaN or Inf.
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{10, 10, 10, 10}},
		{"Same point", Rect{5, 5, 5, 5}, Rect{5, 5, 5, 5}},
		{"Inverted box", Rect{100, 100, 0, 0}, Rect{0, 0, 100, 100}},
		{"Both inverted", Rect{10, 10, 0, 0}, Rect{10, 10, 0, 0}},
		{"Line segments", Rect{0, 0, 10, 0}, Rect{0, 0, 0, 10}},
		{"Negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, pair := range [][2]Rect{{tt.r1, tt.r2}, {tt.r2, tt.r1}} {
				iou := CalculateIoU(pair[0], pair[1])
				giou := CalculateGIoU(pair[0], pair[1])

				require.False(t, math.IsNaN(float64(iou)) || math.IsInf(float64(iou), 0), "IoU must be finite")
				require.False(t, math.IsNaN(float64(giou)) || math.IsInf(float64(giou), 0), "GIoU must be finite")
				assert.GreaterOrEqual(t, iou, float32(0))
				assert.LessOrEqual(t, iou, float32(1))
				assert.LessOrEqual(t, giou, iou)
			}
		})
	}
}

func TestArea(t *testing.T) {
	assert.Equal(t, float32(200), Area(Rect{0, 0, 10, 20}))
	assert.Equal(t, float32(0), Area(Rect{10, 0, 0, 20}), "inverted x must clamp to zero")
	assert.Equal(t, float32(0), Area(Rect{0, 20, 10, 0}), "inverted y must clamp to zero")
	assert.Equal(t, float32(0), Area(Rect{3, 3, 3, 9}))
}

func TestL1(t *testing.T) {
	assert.Equal(t, float32(0), L1(Rect{1, 2, 3, 4}, Rect{1, 2, 3, 4}))
	assert.InDelta(t, 0.9, L1(Rect{0.1, 0.1, 0.5, 0.5}, Rect{0.2, 0.3, 0.3, 0.9}), 1e-6)
}

// TestGIoU_NeverExceedsIoU samples random (often degenerate) boxes.
func TestGIoU_NeverExceedsIoU(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomRect := func() Rect {
		return Rect{
			X1: rng.Float32()*200 - 50,
			Y1: rng.Float32()*200 - 50,
			X2: rng.Float32()*200 - 50,
			Y2: rng.Float32()*200 - 50,
		}
	}

	for i := 0; i < 5000; i++ {
		a, b := randomRect(), randomRect()
		iou := CalculateIoU(a, b)
		giou := CalculateGIoU(a, b)
		require.LessOrEqualf(t, giou, iou, "giou > iou for %+v %+v", a, b)
		require.GreaterOrEqualf(t, giou, float32(-1), "giou < -1 for %+v %+v", a, b)
		require.LessOrEqualf(t, iou, float32(1)+1e-6, "iou > 1 for %+v %+v", a, b)
	}
}

func TestPairwise(t *testing.T) {
	a := []Rect{{0, 0, 10, 10}, {0, 0, 5, 5}}
	b := []Rect{{0, 0, 10, 10}, {20, 20, 30, 30}, {5, 5, 15, 15}}

	iou, union := PairwiseIoU(a, b)
	require.NotNil(t, iou)
	require.NotNil(t, union)

	r, c := iou.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	giou := PairwiseGIoU(a, b)
	for i := range a {
		for j := range b {
			assert.InDelta(t, float64(CalculateIoU(a[i], b[j])), iou.At(i, j), 1e-9)
			assert.InDelta(t, float64(CalculateGIoU(a[i], b[j])), giou.At(i, j), 1e-9)
			assert.LessOrEqual(t, giou.At(i, j), iou.At(i, j))
		}
	}
	assert.Equal(t, 100.0, union.At(0, 0))
	assert.Equal(t, 200.0, union.At(0, 1))
	assert.Equal(t, 175.0, union.At(0, 2))

	iou, union = PairwiseIoU(a, nil)
	assert.Nil(t, iou)
	assert.Nil(t, union)
	assert.Nil(t, PairwiseGIoU(nil, b))
}
