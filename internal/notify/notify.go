// Package notify carries user-facing notifications (toasts) from the
// application core to whatever surface shows them.
package notify

import (
	"sync"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

// Kind is the severity of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(kind Kind, msg string)
}

// Func adapts a plain function to Notifier.
type Func func(kind Kind, msg string)

func (f Func) Notify(kind Kind, msg string) { f(kind, msg) }

// Discard drops every notification.
var Discard Notifier = Func(func(Kind, string) {})

// Log writes notifications to the debug log.
var Log Notifier = Func(func(kind Kind, msg string) {
	debug.Notify(string(kind), msg)
})

// Multi fans a notification out to several notifiers, in order.
func Multi(ns ...Notifier) Notifier {
	return Func(func(kind Kind, msg string) {
		for _, n := range ns {
			if n != nil {
				n.Notify(kind, msg)
			}
		}
	})
}

// Event is a recorded notification.
type Event struct {
	Kind Kind
	Msg  string
}

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(kind Kind, msg string) {
	r.mu.Lock()
	r.events = append(r.events, Event{Kind: kind, Msg: msg})
	r.mu.Unlock()
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
