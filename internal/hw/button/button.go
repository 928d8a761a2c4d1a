// Package button watches a momentary push button wired between a GPIO pin
// and ground (active LOW, internal pull-up).
package button

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/hw/gpio"
)

// stableSamples is how many consecutive LOW reads make a press.
const stableSamples = 2

// Watcher polls one pin and calls OnPress once per press.
type Watcher struct {
	gpio    gpio.Driver
	pin     int
	poll    time.Duration
	onPress func()
}

// NewWatcher configures pin as an input.
func NewWatcher(g gpio.Driver, pin int, poll time.Duration, onPress func()) (*Watcher, error) {
	if poll <= 0 {
		return nil, fmt.Errorf("button poll interval must be > 0, got %v", poll)
	}
	if err := g.SetupPin(pin, gpio.Input); err != nil {
		return nil, fmt.Errorf("setup button pin %d: %w", pin, err)
	}
	return &Watcher{gpio: g, pin: pin, poll: poll, onPress: onPress}, nil
}

// Run polls until ctx is cancelled. Holding the button down triggers only
// one press; it must be released before the next one counts.
func (w *Watcher) Run(ctx context.Context) error {
	debug.Info("Shutter button on pin %d (poll %v)", w.pin, w.poll)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	low := 0
	pressed := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		level, err := w.gpio.ReadPin(w.pin)
		if err != nil {
			return fmt.Errorf("read button pin %d: %w", w.pin, err)
		}
		if level == gpio.High {
			low = 0
			pressed = false
			continue
		}
		low++
		if !pressed && low >= stableSamples {
			pressed = true
			debug.Live("Shutter button pressed")
			if w.onPress != nil {
				w.onPress()
			}
		}
	}
}
