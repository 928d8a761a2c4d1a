package camera

import (
	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/hw/gpio"
)

// Torch lights the price tag while the camera is live.
type Torch interface {
	SetTorch(on bool) error
}

// GPIOTorch drives a lamp (LED ring, MOSFET-switched strip) on one pin:
// HIGH = lit, LOW = dark.
type GPIOTorch struct {
	gpio gpio.Driver
	pin  int
}

// NewGPIOTorch configures pin as an output and switches the lamp off.
func NewGPIOTorch(g gpio.Driver, pin int) *GPIOTorch {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &GPIOTorch{gpio: g, pin: pin}
}

// SetTorch switches the lamp on or off.
func (t *GPIOTorch) SetTorch(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	debug.Verbose("Torch: pin %d -> %v", t.pin, level)
	return t.gpio.WritePin(t.pin, level)
}
