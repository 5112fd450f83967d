package imaging

import (
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ToTensor packs a batch of same-sized RGB images into an NCHW float32
// tensor. Pixels are scaled to [0,1] and normalized as (v-mean)/std.
func ToTensor(imgs []image.Image, mean, std float32) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("imaging: empty batch")
	}
	bounds := imgs[0].Bounds()
	h := bounds.Dy()
	w := bounds.Dx()

	data := make([]float32, len(imgs)*3*h*w)
	plane := h * w
	for n, img := range imgs {
		b := img.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, errors.Errorf("imaging: image %d is %dx%d, batch is %dx%d", n, b.Dx(), b.Dy(), w, h)
		}
		base := n * 3 * plane
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				idx := y*w + x
				data[base+idx] = (float32(r)/65535 - mean) / std
				data[base+plane+idx] = (float32(g)/65535 - mean) / std
				data[base+2*plane+idx] = (float32(bl)/65535 - mean) / std
			}
		}
	}
	return tensor.New(tensor.WithShape(len(imgs), 3, h, w), tensor.WithBacking(data)), nil
}
