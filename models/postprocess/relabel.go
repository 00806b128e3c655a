// Package postprocess - IoU relabeling of near-duplicate predictions.
package postprocess

import "github.com/nvr-ai/go-setloss/images"

// DefaultRelabelIoU is the overlap above which a prediction inherits the
// label of a matched neighbour.
const DefaultRelabelIoU float32 = 0.85

// RelabelConfig defines parameters for IoU relabeling.
type RelabelConfig struct {
	// IoUThreshold is the strict lower bound on IoU for a label to spread.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Background is the "no object" label that never spreads.
	Background int `json:"background" yaml:"background"`
}

// Relabel spreads matched labels onto heavily overlapping predictions of the
// same image.
//
// Predictions are visited in index order. A visited prediction whose current
// label is not background writes that label onto every prediction (itself
// included) whose box has IoU strictly greater than the threshold with it.
// Labels written by earlier visits are seen by later ones, so chains of
// overlaps make the result order dependent; index order keeps it
// reproducible.
//
// Arguments:
//   - boxes: The predicted boxes of one image.
//   - labels: The per-prediction labels produced by matching. Not modified.
//   - config: The threshold and background label.
//
// Returns:
//   - A new label slice of the same length. If no labels are provided, returns nil.
func Relabel(boxes []images.Rect, labels []int, config *RelabelConfig) []int {
	n := len(labels)
	if n == 0 {
		return nil
	}

	out := make([]int, n)
	copy(out, labels)

	for i := 0; i < n; i++ {
		anchor := out[i]
		if anchor == config.Background {
			continue
		}

		for j := 0; j < n; j++ {
			if images.CalculateIoU(boxes[i], boxes[j]) > config.IoUThreshold {
				out[j] = anchor
			}
		}
	}

	return out
}
