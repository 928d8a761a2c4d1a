package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Facing modes accepted in Constraints.
const (
	FacingEnvironment = "environment" // rear camera
	FacingUser        = "user"        // selfie camera
)

// Constraints describe the stream requested from a Device. They are
// preferences: a device that cannot honour them still returns its best stream.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// Device is the platform capability that hands out live video streams.
// It represents an abstract capture device, regardless of where the
// frames come from (V4L2, a test pattern, a file, a phone browser, etc.).
type Device interface {
	// Open acquires a stream. It may block (permission prompt, sensor
	// warm-up) and must return early when ctx is cancelled.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live media stream made of one or more tracks.
type Stream interface {
	ID() string
	Tracks() []Track
	// ReadFrame returns the current video frame at native resolution.
	ReadFrame() (image.Image, error)
}

// Track is one constituent of a Stream. Stop releases the underlying
// hardware and is idempotent.
type Track interface {
	Kind() string
	Label() string
	Stop()
	Live() bool
}

// StopAll stops every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Reason classifies why a device could not be opened.
type Reason string

const (
	ReasonDenied   Reason = "denied"   // user or OS refused access
	ReasonAbsent   Reason = "absent"   // no such device
	ReasonHardware Reason = "hardware" // device present but failed
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceAbsent     = errors.New("camera device not found")
	ErrHardware         = errors.New("camera hardware error")
	ErrTrackEnded       = errors.New("camera track ended")
)

// DeviceAccessError reports a failed acquisition.
type DeviceAccessError struct {
	Reason Reason
	Device string
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera %s: access %s", e.Device, e.Reason)
	}
	return fmt.Sprintf("camera %s: access %s: %v", e.Device, e.Reason, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the reason, so callers can
// write errors.Is(err, camera.ErrPermissionDenied) without caring about the cause.
func (e *DeviceAccessError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Reason == ReasonDenied
	case ErrDeviceAbsent:
		return e.Reason == ReasonAbsent
	case ErrHardware:
		return e.Reason == ReasonHardware
	}
	return false
}
