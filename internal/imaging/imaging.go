// Package imaging implements the CAPTCHA image preprocessing chain: grayscale
// conversion, Otsu or adaptive-mean binarization, morphological dilation and
// normalization into a model input tensor.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// Registered decoders for the CAPTCHA formats seen in datasets.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fixed-point ITU-R BT.601 luma coefficients, scaled by 1<<lumaShift.
const (
	lumaRed   = 4899
	lumaGreen = 9617
	lumaBlue  = 1868
	lumaShift = 14
	lumaRound = 1 << (lumaShift - 1)
	maxValue  = 255
)

var (
	// ErrEmptyImage is returned for images with no pixels.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrInvalidBlockSize is returned when the adaptive threshold block is not an odd number > 1.
	ErrInvalidBlockSize = errors.New("block size must be odd and greater than 1")
	// ErrInvalidKernel is returned for non-positive morphology kernels.
	ErrInvalidKernel = errors.New("kernel dimensions must be positive")
	// ErrInvalidSize is returned for non-positive resize targets.
	ErrInvalidSize = errors.New("target size must be positive")
)

// Decode decodes an image in any registered format.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%s: %w", format, ErrEmptyImage)
	}

	return img, nil
}

// ToGray converts img to 8-bit grayscale with Y = 0.299R + 0.587G + 0.114B in
// 14-bit fixed point, bit-exact with OpenCV's RGB to gray conversion. Alpha is
// ignored. The result always starts at (0,0).
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	if src, ok := img.(*image.Gray); ok {
		draw.Draw(gray, gray.Bounds(), src, bounds.Min, draw.Src)

		return gray
	}

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			gray.Pix[y*gray.Stride+x] = luma(c.R, c.G, c.B)
		}
	}

	return gray
}

func luma(r, g, b uint8) uint8 {
	y := (lumaRed*int(r) + lumaGreen*int(g) + lumaBlue*int(b) + lumaRound) >> lumaShift

	return uint8(min(y, maxValue))
}

// Resize scales a grayscale image to exactly width x height with bilinear interpolation.
func Resize(src *image.Gray, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return dst, nil
}
