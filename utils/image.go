package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

var (
	ErrDecodeFailed  = errors.New("image decode failed")
	ErrImageTooLarge = errors.New("image too large")
)

const (
	// Hard cap on raw uploads before we even try to decode.
	MaxRawImageBytes = 20 << 20
	// The vision API rejects base64 payloads above 4 MB.
	MaxEncodedImageBytes = 4 << 20

	DefaultMaxDimension = 1200
	DefaultJPEGQuality  = 80
	minJPEGQuality      = 40
)

// NormalizedImage is the canonical upload representation: a bounded JPEG
// with orientation already applied.
type NormalizedImage struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
}

func (n *NormalizedImage) Base64DataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(n.Data)
}

// NormalizeImage decodes raw photo bytes, applies the device-reported EXIF
// orientation (1–8; anything else is treated as 1), scales the result to fit
// within maxDim×maxDim without ever upscaling, and re-encodes as JPEG.
// Orientation is applied before the resize so a mis-rotated frame is never
// baked into the scaled output. If the base64-encoded result would exceed the
// upload budget the quality is stepped down to a floor before giving up with
// ErrImageTooLarge.
func NormalizeImage(raw []byte, orientation, maxDim, quality int) (*NormalizedImage, error) {
	if len(raw) > MaxRawImageBytes {
		return nil, fmt.Errorf("%w: %d bytes raw", ErrImageTooLarge, len(raw))
	}
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	src = applyOrientation(src, orientation)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dstW, dstH := fitWithin(w, h, maxDim)
	if dstW != w || dstH != h {
		dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		src = dst
	}

	for q := quality; q >= minJPEGQuality; q -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		if base64.StdEncoding.EncodedLen(buf.Len()) <= MaxEncodedImageBytes {
			return &NormalizedImage{Data: buf.Bytes(), Width: dstW, Height: dstH, Quality: q}, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot meet %d byte encoded budget", ErrImageTooLarge, MaxEncodedImageBytes)
}

// fitWithin scales (w, h) to fit inside a maxDim square, preserving aspect
// ratio and never upscaling. The longer side matches the bound and the other
// is derived from the original ratio, rounded to the nearest pixel.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(maxDim) / float64(w)))
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := int(math.Round(float64(w) * float64(maxDim) / float64(h)))
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

// applyOrientation maps the eight EXIF orientation values onto the upright
// frame. Phones that pre-correct report 1, which is a no-op here.
func applyOrientation(src image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if orientation >= 5 {
		// 90°/270° family swaps the axes.
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch orientation {
			case 2: // mirrored horizontally
				dst.Set(w-1-x, y, c)
			case 3: // rotated 180
				dst.Set(w-1-x, h-1-y, c)
			case 4: // mirrored vertically
				dst.Set(x, h-1-y, c)
			case 5: // mirrored then rotated 270 CW
				dst.Set(y, x, c)
			case 6: // rotated 90 CW
				dst.Set(h-1-y, x, c)
			case 7: // mirrored then rotated 90 CW
				dst.Set(h-1-y, w-1-x, c)
			case 8: // rotated 270 CW
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}
