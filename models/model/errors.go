package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrLabelOutOfRange is returned when a ground-truth label is not a real class.
var ErrLabelOutOfRange = errors.New("target label out of range")

// ShapeError reports inconsistent tensor shapes or element counts within a
// sample. It is fatal to the current loss computation.
type ShapeError struct {
	// Field names the offending input, e.g. "pred_boxes".
	Field string
	// Want describes the expected shape or count.
	Want string
	// Got describes what was supplied.
	Got string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch for %s: want %s, got %s", e.Field, e.Want, e.Got)
}

// ShapeErrorf returns a *ShapeError with a stack trace attached.
func ShapeErrorf(field, want, gotFormat string, args ...interface{}) error {
	return errors.WithStack(&ShapeError{Field: field, Want: want, Got: fmt.Sprintf(gotFormat, args...)})
}
