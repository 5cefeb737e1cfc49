package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fixed thumbnail canvas and output budget.
const (
	ThumbWidth    = 1168
	ThumbHeight   = 657
	ThumbMaxBytes = 250000
)

// ResizeAndPad decodes imageBytes, scales it to fit the width×height canvas
// while keeping the aspect ratio, centers it on the canvas, and returns a
// JPEG serialization padded with trailing zero bytes to exactly outSize.
func ResizeAndPad(imageBytes []byte, width, height, outSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// Fit inside the canvas, never upscale beyond it.
	scaleX := float64(width) / float64(bounds.Dx())
	scaleY := float64(height) / float64(bounds.Dy())
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}
	newWidth := int(float64(bounds.Dx()) * scale)
	newHeight := int(float64(bounds.Dy()) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offsetX := (width - newWidth) / 2
	offsetY := (height - newHeight) / 2
	target := image.Rect(offsetX, offsetY, offsetX+newWidth, offsetY+newHeight)
	draw.CatmullRom.Scale(canvas, target, img, bounds, draw.Over, nil)

	encoded, err := encodeUnder(canvas, outSize)
	if err != nil {
		return nil, err
	}

	// Pad to the fixed output size so every artifact is the same length.
	out := make([]byte, outSize)
	copy(out, encoded)
	return out, nil
}

// encodeUnder lowers JPEG quality until the serialization fits the budget.
func encodeUnder(img image.Image, outSize int) ([]byte, error) {
	for _, quality := range []int{80, 60, 40, 20, 10} {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
		if buf.Len() <= outSize {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("image does not fit %d bytes at minimum quality", outSize)
}
