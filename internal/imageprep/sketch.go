package imageprep

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"tattty/internal/domain"
)

// SketchSize is the side length of a sketch canvas.
const SketchSize = 512

// SketchSquare fits a sketch inside a transparent 512x512 canvas, centred, and encodes
// the result as PNG. Scaling follows FitWithin so the sketch is never distorted.
func SketchSquare(img domain.Image) (PreparedImage, error) {
	if err := checkPixels(img.Data, DefaultMaxPixels); err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonDecodeFailed, Err: err}
	}
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonDecodeFailed, Err: err}
	}
	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), SketchSize, SketchSize)

	canvas := image.NewRGBA(image.Rect(0, 0, SketchSize, SketchSize))
	offX := (SketchSize - w) / 2
	offY := (SketchSize - h) / 2
	target := image.Rect(offX, offY, offX+w, offY+h)
	draw.CatmullRom.Scale(canvas, target, src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonEncodeFailed, Err: err}
	}
	name := img.Filename
	if name == "" {
		name = "sketch.png"
	}
	return PreparedImage{
		Filename: name,
		MIME:     "image/png",
		Data:     buf.Bytes(),
		Width:    SketchSize,
		Height:   SketchSize,
		Resized:  w != b.Dx() || h != b.Dy(),
	}, nil
}
