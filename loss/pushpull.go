// Package loss - Push-pull set-prediction loss for detection training.
//
// A batch goes through three stages:
//   - match: per image, Hungarian matching of predictions to ground truth
//     (independent images may run concurrently).
//   - relabel: per image, near-duplicate predictions inherit matched labels.
//   - reduce: box losses are normalized by the matched count of the whole
//     batch and the contrastive term is computed once across all images.
package loss

import (
	"context"
	"log"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-setloss/matcher"
	"github.com/nvr-ai/go-setloss/models/model"
	"github.com/nvr-ai/go-setloss/models/postprocess"
)

// Loss component names as reported by Breakdown.Map.
const (
	KeyCE         = "loss_ce"
	KeyBackground = "loss_bg"
	KeyBBox       = "loss_bbox"
	KeyGIoU       = "loss_giou"
)

// BackgroundLossFunc computes loss_bg from the contrastive loss and the
// collected embeddings and labels.
type BackgroundLossFunc func(ce float64, embeddings [][]float64, labels []int) (float64, error)

// DuplicateCE reports loss_bg as a copy of loss_ce. A distinct background
// term can be supplied with WithBackgroundLoss.
func DuplicateCE(ce float64, _ [][]float64, _ []int) (float64, error) {
	return ce, nil
}

// ImageResult holds the per-image diagnostics of a forward pass.
type ImageResult struct {
	// Assignment is the raw matching result.
	Assignment *matcher.Assignment
	// Labels are the per-prediction labels after relabeling.
	Labels []int
	// Boxes are the unnormalized box sums of the image.
	Boxes BoxSums
}

// Breakdown is the result of a forward pass.
type Breakdown struct {
	CE         float64
	Background float64
	BBox       float64
	GIoU       float64
	// Weighted is the sum of the components scaled by Config.Weights.
	Weighted float64
	// Matched is the number of matched boxes across the batch.
	Matched int
	// Embeddings stacks the K non-background embeddings, K×D. Nil when K is 0.
	Embeddings *tensor.Dense
	// Labels holds the K resolved labels. Nil when K is 0.
	Labels *tensor.Dense
	// Images holds per-image diagnostics in batch order.
	Images []ImageResult
}

// Map returns the four named loss components.
func (b *Breakdown) Map() map[string]float64 {
	return map[string]float64{
		KeyCE:         b.CE,
		KeyBackground: b.Background,
		KeyBBox:       b.BBox,
		KeyGIoU:       b.GIoU,
	}
}

// Total combines the components with the given weights.
func (b *Breakdown) Total(w LossWeights) float64 {
	return w.CE*b.CE + w.Background*b.Background + w.BBox*b.BBox + w.GIoU*b.GIoU
}

// PushPullLoss computes the set-prediction loss of a batch.
type PushPullLoss struct {
	config     Config
	matcher    *matcher.Matcher
	relabel    postprocess.RelabelConfig
	background BackgroundLossFunc
}

// Option configures a PushPullLoss.
type Option func(*PushPullLoss)

// WithBackgroundLoss replaces the default loss_bg computation.
func WithBackgroundLoss(fn BackgroundLossFunc) Option {
	return func(l *PushPullLoss) {
		l.background = fn
	}
}

// New creates a PushPullLoss.
//
// Arguments:
//   - config: The validated loss configuration.
//   - opts: Optional overrides.
//
// Returns:
//   - The loss, or an error if the configuration is invalid.
func New(config Config, opts ...Option) (*PushPullLoss, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m, err := matcher.New(config.NumClasses,
		matcher.WithWeights(config.CostWeights),
		matcher.WithDevice(config.Device),
	)
	if err != nil {
		return nil, err
	}

	l := &PushPullLoss{
		config:  config,
		matcher: m,
		relabel: postprocess.RelabelConfig{
			IoUThreshold: config.RelabelIoU,
			Background:   m.Background(),
		},
		background: DuplicateCE,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the configuration in use.
func (l *PushPullLoss) Config() Config {
	return l.config
}

// Forward computes the loss breakdown of a batch.
//
// Arguments:
//   - ctx: Cancels pending per-image work.
//   - batch: One sample per image.
//
// Returns:
//   - The breakdown with diagnostics.
//   - An error if any image fails; no partial result is returned.
func (l *PushPullLoss) Forward(ctx context.Context, batch []*model.Sample) (*Breakdown, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	results, err := l.matchBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	out := &Breakdown{Images: results}

	var sums BoxSums
	var embeddings [][]float64
	var labels []int
	for i, r := range results {
		sums = sums.Add(r.Boxes)

		rows := batch[i].Predictions.EmbeddingRows()
		for p, label := range r.Labels {
			if label == l.matcher.Background() {
				continue
			}
			embeddings = append(embeddings, append([]float64(nil), rows.RawRowView(p)...))
			labels = append(labels, label)
		}
	}

	out.Matched = sums.Count
	out.BBox, out.GIoU = sums.Normalized()

	out.CE, err = Contrastive(embeddings, labels, l.config.Gain, len(batch))
	if err != nil {
		return nil, errors.Wrap(err, "contrastive loss")
	}
	out.Background, err = l.background(out.CE, embeddings, labels)
	if err != nil {
		return nil, errors.Wrap(err, "background loss")
	}

	for name, v := range out.Map() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrNonFiniteLoss, "%s = %v", name, v)
		}
	}

	out.Weighted = out.Total(l.config.Weights)
	out.Embeddings = model.StackRows(embeddings)
	out.Labels = model.LabelTensor(labels)

	if l.config.Debug {
		log.Printf("📊 batch=%d matched=%d embeddings=%d loss_ce=%.6f loss_bbox=%.6f loss_giou=%.6f",
			len(batch), out.Matched, len(labels), out.CE, out.BBox, out.GIoU)
	}

	return out, nil
}

// matchBatch runs the per-image stages. Each image writes only its own slot.
func (l *PushPullLoss) matchBatch(ctx context.Context, batch []*model.Sample) ([]ImageResult, error) {
	results := make([]ImageResult, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Workers)

	for i, s := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s == nil {
				return errors.Errorf("image %d: nil sample", i)
			}

			r, err := l.matchImage(s)
			if err != nil {
				return errors.Wrapf(err, "image %d", i)
			}
			results[i] = r

			if l.config.Debug {
				log.Printf("🎯 image %d: predictions=%d targets=%d cost=%.4f",
					i, s.Predictions.Len(), s.Targets.Len(), r.Assignment.Cost)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// matchImage matches, relabels and sums the box losses of one image.
func (l *PushPullLoss) matchImage(s *model.Sample) (ImageResult, error) {
	a, err := l.matcher.Match(s)
	if err != nil {
		return ImageResult{}, err
	}

	return ImageResult{
		Assignment: a,
		Labels:     postprocess.Relabel(s.Predictions.Boxes, a.Labels, &l.relabel),
		Boxes:      BoxLosses(s.Predictions.Boxes, s.Targets.Boxes, a.Pairs),
	}, nil
}
