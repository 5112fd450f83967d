package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// PadResize normalizes an arbitrary-sized image to a Size x Size square.
// The image is scaled to width Size with its aspect ratio preserved and,
// when the scaled height falls short, padded vertically with black.
type PadResize struct {
	Size int
	Pad  bool
}

// Apply resizes img to (Size, floor(h/w*Size)) with bilinear interpolation
// and pads the vertical axis up to Size. When the scaled height is already
// >= Size the image is returned unpadded, so the result is not square.
func (p PadResize) Apply(img image.Image) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	hs := int(float64(h) / float64(w) * float64(p.Size))

	resized := image.NewNRGBA(image.Rect(0, 0, p.Size, hs))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)

	if !p.Pad || hs >= p.Size {
		return resized
	}

	// Odd remainders pad one extra row at the bottom.
	top := (p.Size - hs) / 2
	canvas := image.NewNRGBA(image.Rect(0, 0, p.Size, p.Size))
	draw.Draw(canvas, image.Rect(0, top, p.Size, top+hs), resized, image.Point{}, draw.Src)
	return canvas
}
