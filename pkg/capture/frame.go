package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxFrameDim bounds the longest side of an outbound frame.
	DefaultMaxFrameDim = 640
	// DefaultFrameQuality matches the aggressive compression the live
	// channel tolerates; the model reads handwriting fine at 50.
	DefaultFrameQuality = 50
)

// EncodeFrame downsamples img so its longest side is at most maxDim and
// encodes it as JPEG at the given quality.
func EncodeFrame(img image.Image, maxDim, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("frame must not be nil")
	}
	if maxDim <= 0 {
		maxDim = DefaultMaxFrameDim
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultFrameQuality
	}

	scaled := downsample(img, maxDim)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg frame: %w", err)
	}
	return buf.Bytes(), nil
}

func downsample(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = maxDim
		dh = h * maxDim / w
	} else {
		dh = maxDim
		dw = w * maxDim / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
