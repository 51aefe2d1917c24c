// Package imageprep resizes and re-encodes uploaded reference images before they are
// attached to a generation request.
package imageprep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"tattty/internal/domain"
)

const (
	// DefaultMaxDimension bounds both sides of a prepared image.
	DefaultMaxDimension = 1024
	// DefaultQuality is the lossy encoder quality factor in [0,1].
	DefaultQuality = 0.9
	// DefaultMaxPixels bounds the declared pixel count of an image before it is decoded.
	DefaultMaxPixels = 64_000_000
)

// Options configures Prepare.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
	MaxPixels int
}

// DefaultOptions returns the 1024x1024 bounding box at quality 0.9.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxDimension, MaxHeight: DefaultMaxDimension, Quality: DefaultQuality, MaxPixels: DefaultMaxPixels}
}

func (o Options) normalized() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxDimension
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// PreparedImage is an uploaded image after bounding-box resize and re-encode.
type PreparedImage struct {
	Filename string
	MIME     string
	Data     []byte
	Width    int
	Height   int
	Resized  bool
}

// Image converts the prepared result back into a domain image.
func (p PreparedImage) Image() domain.Image {
	return domain.Image{Filename: p.Filename, MIME: p.MIME, Data: p.Data}
}

var (
	errEmptyOutput = errors.New("encoder produced no output")
	// ErrTooManyPixels is wrapped by decode_failed errors for images whose header declares
	// more pixels than allowed.
	ErrTooManyPixels = errors.New("image exceeds the pixel limit")
)

// Prepare decodes img, fits it inside the bounding box of opts preserving its aspect
// ratio and re-encodes it in its original format. Images already inside the box keep
// their dimensions. Failures are *domain.ImageError with reason decode_failed or
// encode_failed.
func Prepare(img domain.Image, opts Options) (PreparedImage, error) {
	opts = opts.normalized()
	if err := checkPixels(img.Data, opts.MaxPixels); err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonDecodeFailed, Err: err}
	}
	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonDecodeFailed, Err: err}
	}
	if format == "jpeg" {
		src = applyOrientation(img.Data, src)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	resized := w != b.Dx() || h != b.Dy()
	out := src
	if resized {
		out = scale(src, w, h)
	}

	var buf bytes.Buffer
	mime, err := encode(&buf, out, format, opts.Quality)
	if err == nil && buf.Len() == 0 {
		err = errEmptyOutput
	}
	if err != nil {
		return PreparedImage{}, &domain.ImageError{Filename: img.Filename, Reason: domain.ReasonEncodeFailed, Err: err}
	}
	return PreparedImage{
		Filename: renameForMIME(img.Filename, mime),
		MIME:     mime,
		Data:     buf.Bytes(),
		Width:    w,
		Height:   h,
		Resized:  resized,
	}, nil
}

// PrepareAll prepares imgs one at a time in order. The first failure aborts the batch and
// is returned with its index filled in.
func PrepareAll(ctx context.Context, imgs []domain.Image, opts Options) ([]domain.Image, error) {
	out := make([]domain.Image, 0, len(imgs))
	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prepared, err := Prepare(img, opts)
		if err != nil {
			var imgErr *domain.ImageError
			if errors.As(err, &imgErr) {
				imgErr.Index = i
			}
			return nil, err
		}
		out = append(out, prepared.Image())
	}
	return out, nil
}

// FitWithin returns the dimensions of a w x h image scaled so it fits inside
// maxW x maxH with its aspect ratio preserved. The larger side is clamped first; up to
// two correction passes handle rounding that leaves the other side out of bounds.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := float64(w) / float64(h)
	fw, fh := float64(w), float64(h)
	if w > h {
		fw = float64(maxW)
		fh = fw / ratio
	} else {
		fh = float64(maxH)
		fw = fh * ratio
	}
	if math.Round(fh) > float64(maxH) {
		fh = float64(maxH)
		fw = fh * ratio
	}
	if math.Round(fw) > float64(maxW) {
		fw = float64(maxW)
		fh = fw / ratio
	}
	return max(1, int(math.Round(fw))), max(1, int(math.Round(fh)))
}

// Dimensions reads the pixel size and format of an encoded image without decoding the
// pixel data.
func Dimensions(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("imageprep: decode config: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// checkPixels reads only the image header and rejects images larger than maxPixels.
func checkPixels(data []byte, maxPixels int) error {
	w, h, _, err := Dimensions(data)
	if err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("imageprep: invalid dimensions %dx%d", w, h)
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d > %d pixels", ErrTooManyPixels, w, h, maxPixels)
	}
	return nil
}

func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// encode writes img in format and returns the MIME type written. WebP has no encoder
// available, so WebP sources are written as PNG which keeps their alpha channel.
func encode(w io.Writer, img image.Image, format string, quality float64) (string, error) {
	switch format {
	case "jpeg":
		q := int(math.Round(quality * 100))
		return "image/jpeg", jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case "gif":
		return "image/gif", gif.Encode(w, img, &gif.Options{NumColors: 256})
	case "png", "webp":
		return "image/png", png.Encode(w, img)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

func renameForMIME(name, mime string) string {
	if name == "" || mime != "image/png" {
		return name
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".webp") {
		return name[:len(name)-len(".webp")] + ".png"
	}
	return name
}
