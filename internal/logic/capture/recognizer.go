package capture

import (
	"context"
	"image"
)

// Recognition is what a Recognizer read off a price tag.
type Recognition struct {
	Label string
	Price string
}

// Recognizer extracts the product label and price from a frame.
type Recognizer interface {
	Recognize(ctx context.Context, frame image.Image) (Recognition, error)
}

// PlaceholderRecognizer returns the same label and price for every frame.
// No text recognition happens.
type PlaceholderRecognizer struct {
	Label string
	Price string
}

func (p PlaceholderRecognizer) Recognize(ctx context.Context, _ image.Image) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	return Recognition{Label: p.Label, Price: p.Price}, nil
}
