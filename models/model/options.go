// Package model - Compute placement options.
package model

import "github.com/pkg/errors"

// Device identifies where the loss computation runs.
//
// The device is an explicit configuration value handed to every component;
// nothing in this module binds a device implicitly.
type Device string

const (
	// DeviceCPU runs every stage on the host with gonum and gorgonia's standard engine.
	DeviceCPU Device = "cpu"
)

// ErrUnsupportedDevice is returned for devices this build cannot target.
var ErrUnsupportedDevice = errors.New("unsupported device")

// Validate reports whether the device can be used. The empty device means CPU.
func (d Device) Validate() error {
	switch d {
	case "", DeviceCPU:
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedDevice, "device %q", string(d))
	}
}
