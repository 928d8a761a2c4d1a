// Package session owns the live camera stream: it opens the device when the
// capture view becomes visible, closes it when the view goes away, and turns
// the current frame into a CapturedItem on demand.
package session

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/hw/camera"
	"github.com/cjeanneret/PriceScan/internal/logic/capture"
	"github.com/cjeanneret/PriceScan/internal/notify"
)

// MsgCameraUnavailable is shown when the device cannot be opened.
const MsgCameraUnavailable = "Не удалось получить доступ к камере"

var (
	// ErrNotReady means there is no live stream or no encoder to capture with.
	ErrNotReady = errors.New("capture not ready")
	// ErrSuperseded means Close (or a newer Open) ran while the device was
	// still being acquired; the late stream has been stopped.
	ErrSuperseded = errors.New("camera session superseded")
)

// State of the camera session.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Stats counts streams handed out by the device and streams released by
// the manager. After Close they are equal.
type Stats struct {
	Acquired int `json:"acquired"`
	Released int `json:"released"`
}

// Manager holds at most one live stream. The stream handle never leaves
// the manager.
type Manager struct {
	device      camera.Device
	constraints camera.Constraints
	pipeline    *capture.Pipeline
	notifier    notify.Notifier
	torch       camera.Torch

	mu     sync.Mutex
	state  State
	gen    uint64 // bumped by every Start and Close; stale acquisitions compare against it
	stream camera.Stream
	cancel context.CancelFunc
	stats  Stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where device errors are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithTorch switches t on while the session is live.
func WithTorch(t camera.Torch) Option {
	return func(m *Manager) { m.torch = t }
}

// NewManager creates an idle manager.
func NewManager(dev camera.Device, c camera.Constraints, p *capture.Pipeline, opts ...Option) *Manager {
	m := &Manager{
		device:      dev,
		constraints: c,
		pipeline:    p,
		notifier:    notify.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open requests the device and blocks until it resolves. See Start.
func (m *Manager) Open(ctx context.Context) error {
	return <-m.Start(ctx)
}

// Start releases any current session, enters Opening and acquires the device
// in the background. The returned channel yields nil once Live, a
// *camera.DeviceAccessError on failure, or ErrSuperseded if Close or another
// Start ran first. The session is claimed before Start returns, so a Close
// issued right after Start always wins.
func (m *Manager) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	m.mu.Lock()
	m.releaseLocked()
	m.gen++
	gen := m.gen
	acquireCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.setStateLocked(StateOpening)
	m.mu.Unlock()

	go func() {
		defer cancel()
		done <- m.acquire(acquireCtx, gen)
	}()
	return done
}

func (m *Manager) acquire(ctx context.Context, gen uint64) error {
	stream, err := m.device.Open(ctx, m.constraints)

	m.mu.Lock()
	if gen != m.gen {
		if stream != nil {
			camera.StopAll(stream)
			m.stats.Acquired++
			m.stats.Released++
			debug.Info("Session: late stream %s released", stream.ID())
		}
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.cancel = nil

	if err != nil {
		m.setStateLocked(StateIdle)
		m.mu.Unlock()
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The caller gave up; nothing to tell the user.
			return err
		}
		var dae *camera.DeviceAccessError
		if !errors.As(err, &dae) {
			err = &camera.DeviceAccessError{Reason: camera.ReasonHardware, Device: "camera", Err: err}
		}
		debug.Error(err)
		m.notifier.Notify(notify.Error, MsgCameraUnavailable)
		return err
	}

	m.stream = stream
	m.stats.Acquired++
	m.setStateLocked(StateLive)
	m.setTorchLocked(true)
	m.mu.Unlock()
	return nil
}

// Close stops every track of the held stream and cancels a pending
// acquisition. Calling it without a session is a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpening && m.state != StateLive {
		return
	}
	m.gen++
	m.releaseLocked()
	m.setStateLocked(StateClosed)
}

func (m *Manager) releaseLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.stream == nil {
		return
	}
	camera.StopAll(m.stream)
	debug.Verbose("Session: stream %s released", m.stream.ID())
	m.stream = nil
	m.stats.Released++
	m.setTorchLocked(false)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	debug.Session(m.state.String(), s.String())
	m.state = s
}

func (m *Manager) setTorchLocked(on bool) {
	if m.torch == nil {
		return
	}
	if err := m.torch.SetTorch(on); err != nil {
		debug.Error(err)
	}
}

// Capture reads the current frame and runs it through the pipeline. It
// returns ErrNotReady unless the session is live and the pipeline has an
// encoder.
func (m *Manager) Capture(ctx context.Context) (capture.CapturedItem, error) {
	frame, err := m.Frame()
	if err != nil {
		return capture.CapturedItem{}, err
	}
	if !m.pipeline.Ready() {
		return capture.CapturedItem{}, ErrNotReady
	}
	return m.pipeline.Process(ctx, frame)
}

// Frame returns the current live frame (used for the preview feed).
func (m *Manager) Frame() (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLive || m.stream == nil {
		return nil, ErrNotReady
	}
	frame, err := m.stream.ReadFrame()
	if errors.Is(err, camera.ErrTrackEnded) {
		return nil, ErrNotReady
	}
	return frame, err
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns the acquisition counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
