package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

// SyntheticDevice generates a test pattern: a dark background, a white
// "price tag" in the middle and a bar that moves one column per frame.
// It is used on machines without a camera and in tests.
type SyntheticDevice struct {
	Label     string
	OpenDelay time.Duration // simulated permission prompt / sensor warm-up
	Deny      bool          // refuse every Open with ReasonDenied

	mu     sync.Mutex
	seq    int
	opened int
	live   int
}

// NewSyntheticDevice creates a test-pattern device.
func NewSyntheticDevice(openDelay time.Duration, deny bool) *SyntheticDevice {
	return &SyntheticDevice{
		Label:     "synthetic",
		OpenDelay: openDelay,
		Deny:      deny,
	}
}

func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.OpenDelay > 0 {
		timer := time.NewTimer(d.OpenDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if d.Deny {
		return nil, &DeviceAccessError{Reason: ReasonDenied, Device: d.Label, Err: ErrPermissionDenied}
	}

	w, h := c.Width, c.Height
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	facing := c.FacingMode
	if facing == "" {
		facing = FacingEnvironment
	}

	d.mu.Lock()
	d.seq++
	d.opened++
	d.live++
	id := fmt.Sprintf("%s-%d", d.Label, d.seq)
	d.mu.Unlock()

	debug.Verbose("Synthetic device: opened %s (%dx%d, facing %s)", id, w, h, facing)

	var frame int
	s := &videoStream{id: id}
	s.track = &videoTrack{
		label: fmt.Sprintf("%s %s camera", d.Label, facing),
		onStop: func() {
			d.mu.Lock()
			d.live--
			d.mu.Unlock()
		},
	}
	s.read = func() (image.Image, error) {
		frame++
		return testPattern(w, h, frame), nil
	}
	return s, nil
}

// Opened returns how many streams were handed out.
func (d *SyntheticDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// LiveStreams returns how many streams still have a live track.
func (d *SyntheticDevice) LiveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func testPattern(w, h, frame int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{24, 24, 28, 255}}, image.Point{}, draw.Src)

	tag := image.Rect(w/8, h/2-h/6, w-w/8, h/2+h/6)
	draw.Draw(img, tag, &image.Uniform{color.RGBA{250, 250, 245, 255}}, image.Point{}, draw.Src)

	x := frame % w
	bar := image.Rect(x, 0, x+w/64+1, h)
	draw.Draw(img, bar, &image.Uniform{color.RGBA{220, 40, 40, 255}}, image.Point{}, draw.Src)
	return img
}
