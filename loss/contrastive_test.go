package loss

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-setloss/models/model"
)

func TestContrastive(t *testing.T) {
	tests := []struct {
		name       string
		embeddings [][]float64
		labels     []int
		batchSize  int
		expected   float64
		delta      float64
	}{
		{
			name:       "same label, same direction",
			embeddings: [][]float64{{1, 2, 3}, {2, 4, 6}},
			labels:     []int{1, 1},
			batchSize:  1,
			expected:   0,
			delta:      1e-9,
		},
		{
			name:       "different labels, orthogonal",
			embeddings: [][]float64{{1, 0}, {0, 5}},
			labels:     []int{0, 1},
			batchSize:  1,
			expected:   0,
			delta:      1e-12,
		},
		{
			name:       "different labels, opposite directions clamp to zero",
			embeddings: [][]float64{{1, 0}, {-1, 0}},
			labels:     []int{0, 1},
			batchSize:  1,
			expected:   0,
			delta:      1e-12,
		},
		{
			name:       "different labels, same direction",
			embeddings: [][]float64{{1, 0}, {3, 0}},
			labels:     []int{0, 1},
			batchSize:  2,
			// Each off-diagonal pair hits the log floor: bce = 100.
			expected: 2 * 100 * math.Pow(1-math.Exp(-100), 2) / 4,
			delta:    1e-9,
		},
		{
			name:       "no embeddings",
			embeddings: nil,
			labels:     nil,
			batchSize:  3,
			expected:   0,
			delta:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Contrastive(tt.embeddings, tt.labels, 100, tt.batchSize)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, tt.delta)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestContrastivePullsSameLabelTogether(t *testing.T) {
	labels := []int{2, 2}

	aligned, err := Contrastive([][]float64{{1, 0}, {1, 0.01}}, labels, 100, 1)
	require.NoError(t, err)
	apart, err := Contrastive([][]float64{{1, 0}, {1, 1}}, labels, 100, 1)
	require.NoError(t, err)

	assert.Less(t, aligned, apart)
}

func TestContrastiveGainSharpening(t *testing.T) {
	// cos = 0.6 between the two vectors.
	embeddings := [][]float64{{1, 0}, {0.6, 0.8}}

	expectedTerm := func(s, target float64) float64 {
		bce := binaryCrossEntropy(s, target)
		return math.Pow(1-math.Exp(-bce), 2) * bce
	}

	same, err := Contrastive(embeddings, []int{0, 0}, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2*expectedTerm(0.36, 1), same, 1e-6)

	different, err := Contrastive(embeddings, []int{0, 1}, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2*expectedTerm(math.Sqrt(0.6), 0), different, 1e-6)
}

func TestContrastiveZeroEmbeddingIsFinite(t *testing.T) {
	got, err := Contrastive([][]float64{{0, 0}, {1, 0}}, []int{0, 1}, 100, 1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
}

func TestContrastiveErrors(t *testing.T) {
	_, err := Contrastive([][]float64{{1, 0}, {1}}, []int{0, 0}, 100, 1)
	var shapeErr *model.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "embeddings", shapeErr.Field)

	_, err = Contrastive([][]float64{{1, 0}}, []int{0, 1}, 100, 1)
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "labels", shapeErr.Field)

	_, err = Contrastive([][]float64{{1, 0}}, []int{0}, 100, 0)
	assert.True(t, errors.Is(err, ErrEmptyBatch))
}

func TestSimilaritiesClampedToUnitInterval(t *testing.T) {
	sims, err := Similarities([][]float64{{1, 0}, {-1, 0}, {1, 1}})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, sims.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, sims.At(0, 1))
	assert.InDelta(t, math.Sqrt2/2, sims.At(0, 2), 1e-12)
	assert.InDelta(t, sims.At(2, 0), sims.At(0, 2), 1e-15)
}
