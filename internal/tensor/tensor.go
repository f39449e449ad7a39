// Package tensor holds the single-sample, single-channel input tensors fed to
// CAPTCHA models.
package tensor

import (
	"errors"
	"fmt"
	"image"
)

const maxPixelValue = 255.0

// ErrShapeMismatch is returned when a tensor does not have the shape a consumer expects.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Tensor is a (batch=1, height, width, channel=1) array stored row-major.
// Values produced by FromGray are in [0,1].
type Tensor struct {
	Height int
	Width  int
	Data   []float64
}

// New allocates a zeroed tensor.
func New(height, width int) *Tensor {
	return &Tensor{
		Height: height,
		Width:  width,
		Data:   make([]float64, height*width),
	}
}

// FromGray converts an 8-bit grayscale image into a tensor normalized to [0,1].
func FromGray(img *image.Gray) *Tensor {
	bounds := img.Bounds()
	t := New(bounds.Dy(), bounds.Dx())

	for y := 0; y < t.Height; y++ {
		offset := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := img.Pix[offset : offset+t.Width]
		for x, v := range row {
			t.Data[y*t.Width+x] = float64(v) / maxPixelValue
		}
	}

	return t
}

// Shape returns the four dimensions (batch, height, width, channels).
func (t *Tensor) Shape() [4]int {
	return [4]int{1, t.Height, t.Width, 1}
}

// At returns the value at row y, column x.
func (t *Tensor) At(y, x int) float64 {
	return t.Data[y*t.Width+x]
}

// Expect returns ErrShapeMismatch unless the tensor is height x width.
func (t *Tensor) Expect(height, width int) error {
	if t.Height != height || t.Width != width {
		return fmt.Errorf("%w: expected %dx%d, got %dx%d",
			ErrShapeMismatch, height, width, t.Height, t.Width)
	}

	return nil
}
