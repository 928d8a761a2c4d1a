package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

// StillImageDevice serves a single image from disk as if it were a live
// feed. Handy for demos: point it at a photo of a price tag.
type StillImageDevice struct {
	Path string

	mu  sync.Mutex
	seq int
}

// NewStillImageDevice creates a device backed by the image at path.
func NewStillImageDevice(path string) *StillImageDevice {
	return &StillImageDevice{Path: path}
}

func (d *StillImageDevice) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if err != nil {
		reason := ReasonHardware
		switch {
		case errors.Is(err, fs.ErrNotExist):
			reason = ReasonAbsent
		case errors.Is(err, fs.ErrPermission):
			reason = ReasonDenied
		}
		return nil, &DeviceAccessError{Reason: reason, Device: d.Path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, &DeviceAccessError{Reason: ReasonHardware, Device: d.Path, Err: fmt.Errorf("decode image: %w", err)}
	}

	d.mu.Lock()
	d.seq++
	id := fmt.Sprintf("still-%d", d.seq)
	d.mu.Unlock()

	b := img.Bounds()
	debug.Verbose("Still image device: opened %s (%s %dx%d)", id, format, b.Dx(), b.Dy())

	return &videoStream{
		id:    id,
		track: &videoTrack{label: "still " + d.Path},
		read:  func() (image.Image, error) { return img, nil },
	}, nil
}
