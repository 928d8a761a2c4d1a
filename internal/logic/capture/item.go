package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/PriceScan/internal/debug"
	"github.com/cjeanneret/PriceScan/internal/locale"
)

// CapturedItem is one scan result. Items are never modified after creation.
type CapturedItem struct {
	ID         string    `json:"id"`
	ImageData  string    `json:"image,omitempty"` // JPEG data URI
	Label      string    `json:"text"`
	Price      string    `json:"price"`
	CapturedAt string    `json:"date"` // locale-formatted
	Time       time.Time `json:"time"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// WithoutImage returns a copy of the item with ImageData cleared, for listings.
func (it CapturedItem) WithoutImage() CapturedItem {
	it.ImageData = ""
	return it
}

// Pipeline turns a live frame into a CapturedItem: encode, recognize, stamp.
type Pipeline struct {
	Encoder    FrameEncoder
	Recognizer Recognizer
	Locale     *locale.Formatter
	Now        func() time.Time
	NewID      func() (string, error)
}

// NewPipeline creates a pipeline with a UUIDv7 id source and the wall clock.
func NewPipeline(enc FrameEncoder, rec Recognizer, loc *locale.Formatter) *Pipeline {
	return &Pipeline{
		Encoder:    enc,
		Recognizer: rec,
		Locale:     loc,
		Now:        time.Now,
		NewID:      NewTimeID,
	}
}

// NewTimeID returns a time-ordered unique id (UUIDv7).
func NewTimeID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Ready reports whether the offscreen surface (the encoder) is available.
func (p *Pipeline) Ready() bool {
	return p != nil && p.Encoder != nil && p.Recognizer != nil
}

// Process encodes the frame and attaches the recognition result.
func (p *Pipeline) Process(ctx context.Context, frame image.Image) (CapturedItem, error) {
	now := p.Now()

	enc, err := p.Encoder.Encode(frame)
	if err != nil {
		return CapturedItem{}, fmt.Errorf("encode frame: %w", err)
	}
	rec, err := p.Recognizer.Recognize(ctx, frame)
	if err != nil {
		return CapturedItem{}, fmt.Errorf("recognize: %w", err)
	}
	id, err := p.NewID()
	if err != nil {
		return CapturedItem{}, fmt.Errorf("new item id: %w", err)
	}

	stamp := now.Format(time.DateTime)
	if p.Locale != nil {
		stamp = p.Locale.Format(now)
	}

	item := CapturedItem{
		ID:         id,
		ImageData:  enc.DataURI,
		Label:      rec.Label,
		Price:      rec.Price,
		CapturedAt: stamp,
		Time:       now,
		Width:      enc.Width,
		Height:     enc.Height,
	}
	debug.Captured(item.ID, item.Label, item.Price)
	return item, nil
}
