package imageprep

import (
	"encoding/binary"
	"image"
)

const exifOrientationTag = 0x0112

// applyOrientation rotates or flips a decoded JPEG according to its EXIF orientation
// tag. Images without the tag are returned unchanged.
func applyOrientation(jpegBytes []byte, img image.Image) image.Image {
	orient, ok := jpegOrientation(jpegBytes)
	if !ok {
		return img
	}
	switch orient {
	case 2:
		return transform(img, false, flipX)
	case 3:
		return transform(img, false, rot180)
	case 4:
		return transform(img, false, flipY)
	case 5:
		return transform(transform(img, false, flipX), true, rotCW)
	case 6:
		return transform(img, true, rotCW)
	case 7:
		return transform(transform(img, false, flipX), true, rotCCW)
	case 8:
		return transform(img, true, rotCCW)
	default:
		return img
	}
}

// jpegOrientation walks the JPEG segments up to the first scan and reads the
// orientation from an APP1 Exif block.
func jpegOrientation(b []byte) (int, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1] != 0xD8 {
		return 0, false
	}
	i := 2
	for i+4 < len(b) {
		if b[i] != 0xFF {
			return 0, false
		}
		marker := b[i+1]
		i += 2
		if marker == 0xD9 || marker == 0xDA {
			break
		}
		segLen := int(b[i])<<8 | int(b[i+1])
		i += 2
		if segLen < 2 || i+segLen-2 > len(b) {
			break
		}
		if marker == 0xE1 {
			seg := b[i : i+segLen-2]
			if len(seg) >= 6 && string(seg[:6]) == "Exif\x00\x00" {
				return tiffOrientation(seg[6:])
			}
		}
		i += segLen - 2
	}
	return 0, false
}

func tiffOrientation(tiff []byte) (int, bool) {
	if len(tiff) < 8 {
		return 0, false
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, false
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return 0, false
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd <= 0 || ifd+2 > len(tiff) {
		return 0, false
	}
	count := int(order.Uint16(tiff[ifd : ifd+2]))
	off := ifd + 2
	for n := 0; n < count && off+12 <= len(tiff); n++ {
		if order.Uint16(tiff[off:off+2]) == exifOrientationTag {
			// SHORT values are stored inline in the first two bytes of the value field.
			if order.Uint16(tiff[off+2:off+4]) != 3 {
				return 0, false
			}
			v := int(order.Uint16(tiff[off+8 : off+10]))
			if v < 1 || v > 8 {
				return 0, false
			}
			return v, true
		}
		off += 12
	}
	return 0, false
}

// mapping returns the destination pixel for source pixel (x, y) of a w x h image.
type mapping func(x, y, w, h int) (int, int)

func flipX(x, y, w, _ int) (int, int)  { return w - 1 - x, y }
func flipY(x, y, _, h int) (int, int)  { return x, h - 1 - y }
func rot180(x, y, w, h int) (int, int) { return w - 1 - x, h - 1 - y }
func rotCW(x, y, _, h int) (int, int)  { return h - 1 - y, x }
func rotCCW(x, y, w, _ int) (int, int) { return y, w - 1 - x }

func transform(src image.Image, swap bool, m mapping) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if swap {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := m(x, y, w, h)
			dst.Set(dx, dy, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
