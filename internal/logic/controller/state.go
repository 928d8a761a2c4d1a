package controller

import (
	"fmt"

	"github.com/cjeanneret/PriceScan/internal/logic/capture"
)

// Tab is one of the three screens of the app.
type Tab string

const (
	TabCamera   Tab = "camera"
	TabGallery  Tab = "gallery"
	TabSettings Tab = "settings"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabCamera, TabGallery, TabSettings:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

// State is everything the UI shows. Items are most-recent-first.
type State struct {
	ActiveTab   Tab                    `json:"active_tab"`
	OfflineMode bool                   `json:"offline_mode"`
	Items       []capture.CapturedItem `json:"items"`
}

// Stats are derived from State for the settings tab.
type Stats struct {
	TotalScans int    `json:"total_scans"`
	LastPrice  string `json:"last_price"`
}

// NoPrice is shown as the last price when nothing was scanned yet.
const NoPrice = "—"

func (s *State) stats() Stats {
	st := Stats{TotalScans: len(s.Items), LastPrice: NoPrice}
	if len(s.Items) > 0 {
		st.LastPrice = s.Items[0].Price
	}
	return st
}

func (s *State) prepend(item capture.CapturedItem) {
	s.Items = append(s.Items, capture.CapturedItem{})
	copy(s.Items[1:], s.Items)
	s.Items[0] = item
}

// remove deletes the item with id, keeping the others in order.
func (s *State) remove(id string) bool {
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *State) find(id string) (capture.CapturedItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return capture.CapturedItem{}, false
}

func (s *State) clone() State {
	c := *s
	c.Items = append([]capture.CapturedItem(nil), s.Items...)
	return c
}
