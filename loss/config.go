// Package loss - Configuration for the push-pull set-prediction loss.
package loss

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-setloss/matcher"
	"github.com/nvr-ai/go-setloss/models/model"
	"github.com/nvr-ai/go-setloss/models/postprocess"
)

// LossWeights scales the four loss components into the training scalar.
type LossWeights struct {
	CE         float64 `json:"loss_ce" yaml:"loss_ce"`
	Background float64 `json:"loss_bg" yaml:"loss_bg"`
	BBox       float64 `json:"loss_bbox" yaml:"loss_bbox"`
	GIoU       float64 `json:"loss_giou" yaml:"loss_giou"`
}

// Config represents the configuration of PushPullLoss.
type Config struct {
	// NumClasses is the number of real classes C. The background label is C.
	NumClasses int `json:"num_classes" yaml:"num_classes"`

	// Gain sharpens the contrastive similarities: S^gain for same-label pairs
	// and S^(1/gain) for different-label pairs.
	Gain float64 `json:"gain" yaml:"gain"`

	// RelabelIoU is the IoU above which a prediction inherits a matched label.
	RelabelIoU float32 `json:"relabel_iou" yaml:"relabel_iou"`

	// CostWeights weighs the matching cost terms.
	CostWeights matcher.CostWeights `json:"cost_weights" yaml:"cost_weights"`

	// Weights combines the components into Breakdown.Weighted.
	Weights LossWeights `json:"loss_weights" yaml:"loss_weights"`

	// Device selects where the computation runs.
	Device model.Device `json:"device" yaml:"device"`

	// Workers bounds how many images are matched concurrently.
	Workers int `json:"workers" yaml:"workers"`

	// Debug logs a summary line per image.
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns the usual training setup: 80 COCO classes, gain 100,
// relabel IoU 0.85, equal weights, CPU and sequential matching.
//
// Returns:
//   - Config: Ready-to-use configuration
//
// @example
// config := DefaultConfig()
// config.NumClasses = 20
// criterion, err := New(config)
func DefaultConfig() Config {
	return Config{
		NumClasses:  80,
		Gain:        100,
		RelabelIoU:  postprocess.DefaultRelabelIoU,
		CostWeights: matcher.DefaultCostWeights(),
		Weights:     LossWeights{CE: 1, Background: 1, BBox: 1, GIoU: 1},
		Device:      model.DeviceCPU,
		Workers:     1,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.NumClasses < 1 {
		return errors.Wrapf(ErrInvalidConfig, "num_classes must be positive, got %d", c.NumClasses)
	}
	if !(c.Gain > 0) || math.IsInf(c.Gain, 0) {
		return errors.Wrapf(ErrInvalidConfig, "gain must be positive and finite, got %v", c.Gain)
	}
	if !(c.RelabelIoU > 0 && c.RelabelIoU <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "relabel_iou must be in (0, 1], got %v", c.RelabelIoU)
	}
	if c.Workers < 1 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be at least 1, got %d", c.Workers)
	}
	for name, w := range map[string]float64{
		"loss_ce": c.Weights.CE, "loss_bg": c.Weights.Background,
		"loss_bbox": c.Weights.BBox, "loss_giou": c.Weights.GIoU,
	} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.Wrapf(ErrInvalidConfig, "%s weight must be non-negative and finite, got %v", name, w)
		}
	}
	if err := c.CostWeights.Validate(); err != nil {
		return invalid(err)
	}
	if err := c.Device.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

// invalid marks a component validation error as ErrInvalidConfig while keeping
// the component's own sentinel reachable through errors.Is.
func invalid(err error) error {
	return errors.WithStack(fmt.Errorf("%w: %w", ErrInvalidConfig, err))
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file
// keep their default values. The result is not validated so that environment
// overrides can still be applied; call Validate once they are.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - The merged configuration.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parsing config %s", path)
	}
	return config, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvNumClasses = "SETLOSS_NUM_CLASSES"
	EnvGain       = "SETLOSS_GAIN"
	EnvRelabelIoU = "SETLOSS_RELABEL_IOU"
	EnvWorkers    = "SETLOSS_WORKERS"
	EnvDevice     = "SETLOSS_DEVICE"
	EnvDebug      = "SETLOSS_DEBUG"
)

// ApplyEnv overrides settings from SETLOSS_* environment variables that are
// set and non-empty.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvNumClasses); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvNumClasses)
		}
		c.NumClasses = n
	}
	if v := os.Getenv(EnvGain); v != "" {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvGain)
		}
		c.Gain = g
	}
	if v := os.Getenv(EnvRelabelIoU); v != "" {
		iou, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvRelabelIoU)
		}
		c.RelabelIoU = float32(iou)
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvWorkers)
		}
		c.Workers = n
	}
	if v := os.Getenv(EnvDevice); v != "" {
		c.Device = model.Device(v)
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvDebug)
		}
		c.Debug = debug
	}
	return nil
}
