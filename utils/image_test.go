package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeImage(t *testing.T) {
	t.Run("Should downscale to fit the bounding box", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 2400, 1200), 1, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1200, out.Width)
		assert.Equal(t, 600, out.Height)
	})

	t.Run("Should derive the short side from the aspect ratio", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 1000, 3000), 1, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 400, out.Width)
		assert.Equal(t, 1200, out.Height)
	})

	t.Run("Should never upscale", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 300, 200), 1, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 300, out.Width)
		assert.Equal(t, 200, out.Height)
	})

	t.Run("Should apply orientation before resizing", func(t *testing.T) {
		// Orientation 6 is a 90° device rotation: axes swap.
		out, err := NormalizeImage(pngBytes(t, 400, 200), 6, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 200, out.Width)
		assert.Equal(t, 400, out.Height)
	})

	t.Run("Should treat unknown orientation as upright", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 400, 200), 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 400, out.Width)
		assert.Equal(t, 200, out.Height)
	})

	t.Run("Should produce a decodable JPEG within the encoded budget", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 1600, 1600), 1, 0, 0)
		require.NoError(t, err)
		_, format, err := image.Decode(bytes.NewReader(out.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.LessOrEqual(t, base64.StdEncoding.EncodedLen(len(out.Data)), MaxEncodedImageBytes)
	})

	t.Run("Should fail with ErrDecodeFailed on corrupt input", func(t *testing.T) {
		_, err := NormalizeImage([]byte("definitely not an image"), 1, 0, 0)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Should fail with ErrImageTooLarge before decoding oversized raw input", func(t *testing.T) {
		_, err := NormalizeImage(make([]byte, MaxRawImageBytes+1), 1, 0, 0)
		require.ErrorIs(t, err, ErrImageTooLarge)
	})
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"inside the box untouched", 800, 600, 1200, 800, 600},
		{"landscape bound by width", 2400, 1200, 1200, 1200, 600},
		{"portrait bound by height", 1200, 2400, 1200, 600, 1200},
		{"square", 2000, 2000, 1200, 1200, 1200},
		{"rounds to nearest pixel", 1999, 1000, 1200, 1200, 600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := fitWithin(tc.w, tc.h, tc.maxDim)
			assert.Equal(t, tc.wantW, gotW)
			assert.Equal(t, tc.wantH, gotH)
		})
	}
}

func TestBase64DataURI(t *testing.T) {
	n := &NormalizedImage{Data: []byte{0xff, 0xd8}}
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(n.Data), n.Base64DataURI())
}
