// Package matcher - sentinel errors.
//
// Every message carries the "matcher:" prefix. Callers match them with
// errors.Is; context is attached with errors.Wrap at the point of failure.
package matcher

import "github.com/pkg/errors"

var (
	// ErrInvalidCost is returned when the cost matrix contains NaN or Inf.
	ErrInvalidCost = errors.New("matcher: cost matrix contains non-finite entries")

	// ErrTooManyTargets is returned when an image has more targets than
	// predictions. The query count must be chosen large enough upstream.
	ErrTooManyTargets = errors.New("matcher: more targets than predictions")

	// ErrInvalidWeight is returned for non-positive or non-finite cost weights.
	ErrInvalidWeight = errors.New("matcher: cost weights must be positive and finite")

	// ErrInvalidClassCount is returned when the matcher is built without real classes.
	ErrInvalidClassCount = errors.New("matcher: number of classes must be positive")
)
