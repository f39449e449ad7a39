package imaging

import (
	"fmt"
	"image"
)

// Dilate replaces every pixel with the maximum under a kernelW x kernelH all-ones
// kernel anchored at its centre, repeated iterations times. Pixels outside the
// image do not contribute.
func Dilate(src *image.Gray, kernelW, kernelH, iterations int) (*image.Gray, error) {
	if kernelW <= 0 || kernelH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidKernel, kernelW, kernelH)
	}

	anchorX, anchorY := kernelW/2, kernelH/2
	width, height := src.Rect.Dx(), src.Rect.Dy()
	current := src

	for range iterations {
		dst := image.NewGray(src.Rect)

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var maxPixel uint8

				for ky := 0; ky < kernelH; ky++ {
					sy := y + ky - anchorY
					if sy < 0 || sy >= height {
						continue
					}

					for kx := 0; kx < kernelW; kx++ {
						sx := x + kx - anchorX
						if sx < 0 || sx >= width {
							continue
						}

						if v := current.Pix[sy*current.Stride+sx]; v > maxPixel {
							maxPixel = v
						}
					}
				}

				dst.Pix[y*dst.Stride+x] = maxPixel
			}
		}

		current = dst
	}

	return current, nil
}
