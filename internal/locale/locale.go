// Package locale formats capture timestamps the way the user's browser
// would print Date.toLocaleString for the configured language.
package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// supported lists the tags with a known layout; the first one is the fallback.
var supported = []language.Tag{
	language.Russian,
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
}

var layouts = []string{
	"02.01.2006, 15:04:05", // ru
	"1/2/2006, 3:04:05 PM", // en-US
	"02/01/2006, 15:04:05", // en-GB
	"2.1.2006, 15:04:05",   // de
}

var matcher = language.NewMatcher(supported)

// Formatter prints timestamps for one locale.
type Formatter struct {
	tag    language.Tag
	layout string
	loc    *time.Location
}

// New parses a BCP 47 tag ("ru-RU", "en_US", "de") and picks the closest
// supported layout. Unknown languages fall back to Russian.
func New(tag string) (*Formatter, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	_, idx, _ := matcher.Match(t)
	return &Formatter{tag: supported[idx], layout: layouts[idx], loc: time.Local}, nil
}

// MustNew is New for package-level defaults and tests.
func MustNew(tag string) *Formatter {
	f, err := New(tag)
	if err != nil {
		panic(err)
	}
	return f
}

// In returns a copy of f that prints times in loc.
func (f *Formatter) In(loc *time.Location) *Formatter {
	c := *f
	c.loc = loc
	return &c
}

// Tag returns the matched language.
func (f *Formatter) Tag() language.Tag { return f.tag }

// Format renders t, e.g. "17.10.2026, 14:03:05" for ru-RU.
func (f *Formatter) Format(t time.Time) string {
	return t.In(f.loc).Format(f.layout)
}
