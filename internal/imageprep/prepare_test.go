package imageprep

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"tattty/internal/domain"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestFitWithin(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{name: "landscape", w: 2000, h: 1000, maxW: 1024, maxH: 1024, wantW: 1024, wantH: 512},
		{name: "portrait", w: 1000, h: 3000, maxW: 1024, maxH: 1024, wantW: 341, wantH: 1024},
		{name: "square", w: 4096, h: 4096, maxW: 1024, maxH: 1024, wantW: 1024, wantH: 1024},
		{name: "inside", w: 800, h: 600, maxW: 1024, maxH: 1024, wantW: 800, wantH: 600},
		{name: "wide box corrected", w: 1000, h: 900, maxW: 1000, maxH: 500, wantW: 556, wantH: 500},
		{name: "tall box corrected", w: 900, h: 1000, maxW: 300, maxH: 1000, wantW: 300, wantH: 333},
		{name: "sliver", w: 5000, h: 2, maxW: 1024, maxH: 1024, wantW: 1024, wantH: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotW, gotH := FitWithin(tc.w, tc.h, tc.maxW, tc.maxH)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Fatalf("FitWithin(%d, %d, %d, %d) = %dx%d, want %dx%d", tc.w, tc.h, tc.maxW, tc.maxH, gotW, gotH, tc.wantW, tc.wantH)
			}
			if gotW > tc.maxW || gotH > tc.maxH {
				t.Fatalf("result %dx%d exceeds %dx%d", gotW, gotH, tc.maxW, tc.maxH)
			}
		})
	}
}

func TestPrepareResizesLargeImage(t *testing.T) {
	data := encodePNG(t, 2000, 1000)
	got, err := Prepare(domain.Image{Filename: "wide.png", MIME: "image/png", Data: data}, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if got.Width != 1024 || got.Height != 512 || !got.Resized {
		t.Fatalf("prepared = %dx%d resized=%v, want 1024x512 resized", got.Width, got.Height, got.Resized)
	}
	w, h, format, err := Dimensions(got.Data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 1024 || h != 512 || format != "png" {
		t.Fatalf("encoded = %dx%d %s, want 1024x512 png", w, h, format)
	}
	if got.MIME != "image/png" {
		t.Fatalf("MIME = %q, want image/png", got.MIME)
	}
}

func TestPrepareKeepsCompliantDimensions(t *testing.T) {
	data := encodeJPEG(t, 640, 480)
	got, err := Prepare(domain.Image{Filename: "small.jpg", MIME: "image/jpeg", Data: data}, DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if got.Resized || got.Width != 640 || got.Height != 480 {
		t.Fatalf("prepared = %dx%d resized=%v, want 640x480 untouched", got.Width, got.Height, got.Resized)
	}
	if got.MIME != "image/jpeg" {
		t.Fatalf("MIME = %q, want image/jpeg", got.MIME)
	}
}

func TestPrepareRejectsUndecodable(t *testing.T) {
	_, err := Prepare(domain.Image{Filename: "notes.txt", Data: []byte("not an image")}, DefaultOptions())
	var imgErr *domain.ImageError
	if !errors.As(err, &imgErr) {
		t.Fatalf("error type = %T, want *domain.ImageError", err)
	}
	if imgErr.Reason != domain.ReasonDecodeFailed {
		t.Fatalf("Reason = %q, want %q", imgErr.Reason, domain.ReasonDecodeFailed)
	}
	if !errors.Is(err, domain.ErrImageRejected) {
		t.Fatal("image errors should match ErrImageRejected")
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h RGBA image with no
// pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(ihdr)))
	buf.Write(length[:])
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(chunk))
	buf.Write(crc[:])
	return buf.Bytes()
}

func TestPrepareRejectsOversizedHeader(t *testing.T) {
	data := pngHeader(50000, 50000)
	w, h, format, err := Dimensions(data)
	if err != nil || w != 50000 || h != 50000 || format != "png" {
		t.Fatalf("Dimensions = %d, %d, %q, %v", w, h, format, err)
	}

	_, err = Prepare(domain.Image{Filename: "bomb.png", MIME: "image/png", Data: data}, DefaultOptions())
	var imgErr *domain.ImageError
	if !errors.As(err, &imgErr) {
		t.Fatalf("error type = %T, want *domain.ImageError", err)
	}
	if imgErr.Reason != domain.ReasonDecodeFailed {
		t.Fatalf("Reason = %q, want %q", imgErr.Reason, domain.ReasonDecodeFailed)
	}
	if !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("err = %v, want ErrTooManyPixels", err)
	}

	_, err = SketchSquare(domain.Image{Filename: "bomb.png", Data: data})
	if !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("SketchSquare err = %v, want ErrTooManyPixels", err)
	}
}

func TestPrepareHonoursMaxPixels(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPixels = 100 * 100
	if _, err := Prepare(domain.Image{Data: encodePNG(t, 100, 100)}, opts); err != nil {
		t.Fatalf("image at the limit rejected: %v", err)
	}
	if _, err := Prepare(domain.Image{Data: encodePNG(t, 101, 100)}, opts); !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("err = %v, want ErrTooManyPixels", err)
	}
}

func TestPrepareAllAbortsOnFirstFailure(t *testing.T) {
	imgs := []domain.Image{
		{Filename: "a.png", Data: encodePNG(t, 10, 10)},
		{Filename: "b.png", Data: []byte("broken")},
		{Filename: "c.png", Data: encodePNG(t, 10, 10)},
	}
	out, err := PrepareAll(context.Background(), imgs, DefaultOptions())
	if out != nil {
		t.Fatalf("expected no images on failure, got %d", len(out))
	}
	var imgErr *domain.ImageError
	if !errors.As(err, &imgErr) || imgErr.Index != 1 || imgErr.Filename != "b.png" {
		t.Fatalf("error = %v, want image 1 (b.png)", err)
	}
}

func TestPrepareAllKeepsOrder(t *testing.T) {
	imgs := []domain.Image{
		{Filename: "first.png", Data: encodePNG(t, 20, 10)},
		{Filename: "second.png", Data: encodePNG(t, 10, 20)},
	}
	out, err := PrepareAll(context.Background(), imgs, Options{MaxWidth: 8, MaxHeight: 8})
	if err != nil {
		t.Fatalf("PrepareAll returned error: %v", err)
	}
	if len(out) != 2 || out[0].Filename != "first.png" || out[1].Filename != "second.png" {
		t.Fatalf("unexpected order: %+v", out)
	}
	w, h, _, _ := Dimensions(out[1].Data)
	if w != 4 || h != 8 {
		t.Fatalf("second image = %dx%d, want 4x8", w, h)
	}
}

func TestPrepareAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PrepareAll(ctx, []domain.Image{{Data: encodePNG(t, 2, 2)}}, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSketchSquare(t *testing.T) {
	got, err := SketchSquare(domain.Image{Data: encodePNG(t, 1024, 512)})
	if err != nil {
		t.Fatalf("SketchSquare returned error: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != SketchSize || b.Dy() != SketchSize {
		t.Fatalf("sketch = %dx%d, want 512x512", b.Dx(), b.Dy())
	}
	// 1024x512 fits as 512x256, leaving transparent bands above and below.
	if _, _, _, a := decoded.At(256, 10).RGBA(); a != 0 {
		t.Fatalf("top band alpha = %d, want 0", a)
	}
	if _, _, _, a := decoded.At(256, 256).RGBA(); a == 0 {
		t.Fatal("centre should be opaque")
	}
	if got.Filename != "sketch.png" || got.MIME != "image/png" {
		t.Fatalf("metadata = %q %q", got.Filename, got.MIME)
	}
}

func TestTransformRotatesClockwise(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	red := color.RGBA{R: 255, A: 255}
	src.Set(0, 0, red)
	out := transform(src, true, rotCW)
	if b := out.Bounds(); b.Dx() != 2 || b.Dy() != 3 {
		t.Fatalf("rotated bounds = %v, want 2x3", b)
	}
	if got := color.RGBAModel.Convert(out.At(1, 0)); got != red {
		t.Fatalf("top-left should move to top-right, got %v", got)
	}
}

func TestJPEGOrientationParsesExif(t *testing.T) {
	// SOI, APP1 with a little-endian TIFF header holding a single Orientation=6 entry.
	tiff := []byte{
		'I', 'I', 42, 0, 8, 0, 0, 0,
		1, 0,
		0x12, 0x01, 3, 0, 1, 0, 0, 0, 6, 0, 0, 0,
		0, 0, 0, 0,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	segLen := len(payload) + 2
	data := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(segLen >> 8), byte(segLen)}
	data = append(data, payload...)
	data = append(data, 0xFF, 0xD9)

	got, ok := jpegOrientation(data)
	if !ok || got != 6 {
		t.Fatalf("jpegOrientation = %d, %v; want 6, true", got, ok)
	}
	if _, ok := jpegOrientation(encodeJPEG(t, 4, 4)); ok {
		t.Fatal("plain JPEG should have no orientation")
	}
}
