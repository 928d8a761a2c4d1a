package camera

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

// videoTrack is the single video track of the streams handed out by the
// devices in this package. onStop runs once, on the first Stop.
type videoTrack struct {
	label   string
	stopped atomic.Bool
	onStop  func()
}

func (t *videoTrack) Kind() string  { return "video" }
func (t *videoTrack) Label() string { return t.label }
func (t *videoTrack) Live() bool    { return !t.stopped.Load() }

func (t *videoTrack) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	debug.Trace("Track %q stopped", t.label)
	if t.onStop != nil {
		t.onStop()
	}
}

// videoStream pairs one video track with a frame source.
type videoStream struct {
	id    string
	track *videoTrack
	mu    sync.Mutex
	read  func() (image.Image, error)
}

func (s *videoStream) ID() string { return s.id }

func (s *videoStream) Tracks() []Track { return []Track{s.track} }

func (s *videoStream) ReadFrame() (image.Image, error) {
	if !s.track.Live() {
		return nil, ErrTrackEnded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}
