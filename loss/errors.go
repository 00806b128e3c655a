package loss

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("loss: invalid configuration")

	// ErrEmptyBatch is returned when Forward receives no images.
	ErrEmptyBatch = errors.New("loss: empty batch")

	// ErrNonFiniteLoss is returned when a loss component is NaN or Inf.
	ErrNonFiniteLoss = errors.New("loss: non-finite loss")
)
