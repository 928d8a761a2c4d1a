// Package controller owns the application state and reacts to user actions:
// switching tabs drives the camera session, captures fill the gallery.
package controller

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/logic/capture"
	"github.com/cjeanneret/PriceScan/internal/logic/session"
	"github.com/cjeanneret/PriceScan/internal/notify"
)

// User-facing notification texts.
const (
	MsgRecognized = "Ценник распознан"
	MsgDeleted    = "Удалено"
	MsgOfflineOn  = "Офлайн режим включён"
	MsgOfflineOff = "Онлайн режим включён"
)

var (
	ErrUnknownTab   = errors.New("unknown tab")
	ErrItemNotFound = errors.New("item not found")
	ErrCaptureBusy  = errors.New("capture already in progress")
)

// Session is the part of the camera session manager the controller drives.
type Session interface {
	Start(ctx context.Context) <-chan error
	Close()
	Capture(ctx context.Context) (capture.CapturedItem, error)
	Frame() (image.Image, error)
	State() session.State
}

// Controller is the single owner of State.
type Controller struct {
	session  Session
	notifier notify.Notifier
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     State
	capturing bool
	pending   sync.WaitGroup
}

// Options are the initial values of the state.
type Options struct {
	InitialTab  Tab
	OfflineMode bool
}

// New creates a controller. If the initial tab is the camera, the session is
// opened right away.
func New(s Session, n notify.Notifier, opts Options) *Controller {
	if n == nil {
		n = notify.Discard
	}
	tab := opts.InitialTab
	if tab == "" {
		tab = TabCamera
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session:  s,
		notifier: n,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{ActiveTab: tab, OfflineMode: opts.OfflineMode},
	}
	if tab == TabCamera {
		c.mu.Lock()
		c.openLocked()
		c.mu.Unlock()
	}
	return c
}

// openLocked claims the session synchronously and waits for the device in
// the background.
func (c *Controller) openLocked() {
	done := c.session.Start(c.ctx)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := <-done; err != nil && !errors.Is(err, session.ErrSuperseded) {
			debug.Live("Camera not available: %v", err)
		}
	}()
}

// SelectTab switches the visible tab. Leaving the camera tab closes the
// session, entering it opens a new one.
func (c *Controller) SelectTab(tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state.ActiveTab
	if prev == tab {
		return nil
	}
	debug.Live("Tab: %s -> %s", prev, tab)
	c.state.ActiveTab = tab
	if prev == TabCamera {
		c.session.Close()
	}
	if tab == TabCamera {
		c.openLocked()
	}
	return nil
}

// Capture takes a picture and prepends it to the gallery. When the camera is
// not ready it returns (nil, nil) and nothing happens.
func (c *Controller) Capture(ctx context.Context) (*capture.CapturedItem, error) {
	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		return nil, ErrCaptureBusy
	}
	c.capturing = true
	c.mu.Unlock()

	item, err := c.session.Capture(ctx)

	c.mu.Lock()
	c.capturing = false
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, session.ErrNotReady) {
			debug.Verbose("Capture ignored: camera not ready")
			return nil, nil
		}
		return nil, err
	}
	if c.state.ActiveTab != TabCamera {
		// The camera view went away while the frame was being processed.
		c.mu.Unlock()
		debug.Verbose("Capture %s dropped: camera tab closed", item.ID)
		return nil, nil
	}
	c.state.prepend(item)
	c.mu.Unlock()

	c.notifier.Notify(notify.Success, MsgRecognized)
	return &item, nil
}

// Delete removes one item from the gallery.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	ok := c.state.remove(id)
	c.mu.Unlock()
	if !ok {
		return ErrItemNotFound
	}
	debug.Live("Deleted item %s", id)
	c.notifier.Notify(notify.Success, MsgDeleted)
	return nil
}

// Item returns one item, with its image.
func (c *Controller) Item(id string) (capture.CapturedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.state.find(id)
	if !ok {
		return capture.CapturedItem{}, ErrItemNotFound
	}
	return it, nil
}

// SetOfflineMode sets the display-only offline flag and tells the user.
func (c *Controller) SetOfflineMode(on bool) {
	c.mu.Lock()
	c.state.OfflineMode = on
	c.mu.Unlock()
	c.notifyOffline(on)
}

// ToggleOfflineMode flips the offline flag and returns the new value.
func (c *Controller) ToggleOfflineMode() bool {
	c.mu.Lock()
	on := !c.state.OfflineMode
	c.state.OfflineMode = on
	c.mu.Unlock()
	c.notifyOffline(on)
	return on
}

func (c *Controller) notifyOffline(on bool) {
	msg := MsgOfflineOff
	if on {
		msg = MsgOfflineOn
	}
	c.notifier.Notify(notify.Success, msg)
}

// Stats returns the scan count and the most recent price.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.stats()
}

// Snapshot returns a copy of the state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Frame returns the live camera frame for the preview.
func (c *Controller) Frame() (image.Image, error) {
	return c.session.Frame()
}

// SessionState reports the camera session state.
func (c *Controller) SessionState() session.State {
	return c.session.State()
}

// Settle waits until every pending device acquisition has resolved.
func (c *Controller) Settle() {
	c.pending.Wait()
}

// Shutdown closes the camera session and waits for pending acquisitions.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.session.Close()
	c.mu.Unlock()
	c.cancel()
	c.pending.Wait()
}
