package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

var (
	ErrEmptyFrame = errors.New("empty frame")
	ErrBadDataURI = errors.New("malformed data URI")
)

// Encoded is a still frame ready to be stored in a CapturedItem.
type Encoded struct {
	DataURI string
	Width   int
	Height  int
	Size    int // encoded bytes before base64
}

// FrameEncoder turns a video frame into a compressed still image.
type FrameEncoder interface {
	Encode(frame image.Image) (Encoded, error)
}

// JPEGEncoder draws the frame onto an offscreen RGBA surface sized to the
// frame's native resolution and encodes it as a JPEG data URI.
type JPEGEncoder struct {
	Quality  int // 1-100, 0 = 92
	MaxWidth int // downscale wider frames, 0 = never
}

func (e *JPEGEncoder) Encode(frame image.Image) (Encoded, error) {
	if frame == nil || frame.Bounds().Empty() {
		return Encoded{}, ErrEmptyFrame
	}
	b := frame.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), frame, b.Min, draw.Src)

	var out image.Image = canvas
	if e.MaxWidth > 0 && b.Dx() > e.MaxWidth {
		h := b.Dy() * e.MaxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, e.MaxWidth, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
		out = scaled
	}

	quality := e.Quality
	if quality == 0 {
		quality = 92
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}

	ob := out.Bounds()
	debug.Verbose("Encoder: %dx%d -> %dx%d, %d bytes (q=%d)", b.Dx(), b.Dy(), ob.Dx(), ob.Dy(), buf.Len(), quality)
	return Encoded{
		DataURI: jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   ob.Dx(),
		Height:  ob.Dy(),
		Size:    buf.Len(),
	}, nil
}

// DecodeDataURI returns the MIME type and raw bytes of a base64 data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return "", nil, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return mime, data, nil
}
