// Package matcher - Hungarian matching of detector queries to ground truth.
package matcher

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-setloss/models/model"
)

// Assignment is the result of matching one image.
type Assignment struct {
	// Pairs holds exactly M (prediction, target) pairs sorted by prediction.
	Pairs []Pair
	// Labels holds one class per prediction. Unmatched predictions carry the
	// background label.
	Labels []int
	// Cost is the total cost of the assignment.
	Cost float64
}

// Matcher assigns ground-truth objects to predictions one image at a time.
type Matcher struct {
	numClasses int
	weights    CostWeights
	device     model.Device
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWeights overrides the default equal cost weights.
func WithWeights(w CostWeights) Option {
	return func(m *Matcher) {
		m.weights = w
	}
}

// WithDevice selects where the cost matrix is computed.
func WithDevice(d model.Device) Option {
	return func(m *Matcher) {
		m.device = d
	}
}

// New creates a Matcher for numClasses real classes. The background label
// is numClasses.
//
// Arguments:
//   - numClasses: The number of real classes C.
//   - opts: Optional weights and device.
//
// Returns:
//   - The matcher, or an error for invalid classes, weights or device.
func New(numClasses int, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		numClasses: numClasses,
		weights:    DefaultCostWeights(),
		device:     model.DeviceCPU,
	}
	for _, opt := range opts {
		opt(m)
	}

	if numClasses < 1 {
		return nil, errors.Wrapf(ErrInvalidClassCount, "got %d", numClasses)
	}
	if err := m.weights.Validate(); err != nil {
		return nil, err
	}
	if err := m.device.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Background returns the label given to unmatched predictions.
func (m *Matcher) Background() int {
	return m.numClasses
}

// Weights returns the cost weights in use.
func (m *Matcher) Weights() CostWeights {
	return m.weights
}

// Match solves the assignment for one image.
//
// With no targets every prediction is background and the pair list is empty.
//
// Arguments:
//   - s: The predictions and targets of one image.
//
// Returns:
//   - The assignment with a freshly allocated per-prediction label vector.
//   - A *model.ShapeError, model.ErrLabelOutOfRange, ErrTooManyTargets or
//     ErrInvalidCost.
func (m *Matcher) Match(s *model.Sample) (*Assignment, error) {
	if err := s.Validate(m.numClasses); err != nil {
		return nil, err
	}

	labels := make([]int, s.Predictions.Len())
	for i := range labels {
		labels[i] = m.Background()
	}

	cost, err := BuildCostMatrix(&s.Predictions, &s.Targets, m.weights)
	if err != nil {
		return nil, errors.Wrap(err, "building cost matrix")
	}

	pairs, total, err := Solve(cost)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		labels[p.Prediction] = s.Targets.Labels[p.Target]
	}

	return &Assignment{Pairs: pairs, Labels: labels, Cost: total}, nil
}
