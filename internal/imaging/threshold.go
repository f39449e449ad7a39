package imaging

import (
	"fmt"
	"image"
	"math"
)

const (
	histogramBins = 256
	// Probabilities below this are treated as an empty class.
	classEpsilon = 1.1920929e-07
)

// OtsuThreshold returns the global threshold that maximizes the between-class
// variance of the image histogram.
func OtsuThreshold(src *image.Gray) uint8 {
	var histogram [histogramBins]float64

	total := 0
	for y := 0; y < src.Rect.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+src.Rect.Dx()]
		for _, v := range row {
			histogram[v]++
			total++
		}
	}

	if total == 0 {
		return 0
	}

	mean := 0.0
	for i := range histogram {
		histogram[i] /= float64(total)
		mean += float64(i) * histogram[i]
	}

	var (
		q1, mu1, maxSigma float64
		best              int
	)

	for i, p := range histogram {
		mu1 *= q1
		q1 += p
		q2 := 1 - q1

		if math.Min(q1, q2) < classEpsilon || math.Max(q1, q2) > 1-classEpsilon {
			continue
		}

		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mean - q1*mu1) / q2

		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = i
		}
	}

	return uint8(best)
}

// Binarize maps pixels strictly above threshold to 255 and the rest to 0.
func Binarize(src *image.Gray, threshold uint8) *image.Gray {
	dst := image.NewGray(src.Rect)

	for i, v := range src.Pix {
		if v > threshold {
			dst.Pix[i] = maxValue
		}
	}

	return dst
}

// AdaptiveMeanThreshold binarizes each pixel against the rounded mean of its
// blockSize x blockSize neighbourhood minus c. Borders replicate edge pixels.
func AdaptiveMeanThreshold(src *image.Gray, blockSize, c int) (*image.Gray, error) {
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, blockSize)
	}

	width, height := src.Rect.Dx(), src.Rect.Dy()
	radius := blockSize / 2
	area := float64(blockSize * blockSize)
	dst := image.NewGray(src.Rect)

	// Integral image over the replicated-border padded source.
	paddedW, paddedH := width+2*radius, height+2*radius
	integral := make([]int64, (paddedW+1)*(paddedH+1))

	for py := 0; py < paddedH; py++ {
		sy := clamp(py-radius, height-1)
		rowSum := int64(0)

		for px := 0; px < paddedW; px++ {
			sx := clamp(px-radius, width-1)
			rowSum += int64(src.Pix[sy*src.Stride+sx])
			integral[(py+1)*(paddedW+1)+px+1] = integral[py*(paddedW+1)+px+1] + rowSum
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			x0, y0 := x, y
			x1, y1 := x+blockSize, y+blockSize
			sum := integral[y1*(paddedW+1)+x1] - integral[y0*(paddedW+1)+x1] -
				integral[y1*(paddedW+1)+x0] + integral[y0*(paddedW+1)+x0]
			mean := int(math.RoundToEven(float64(sum) / area))

			if int(src.Pix[y*src.Stride+x])-mean > -c {
				dst.Pix[y*dst.Stride+x] = maxValue
			}
		}
	}

	return dst, nil
}

func clamp(v, upper int) int {
	if v < 0 {
		return 0
	}

	if v > upper {
		return upper
	}

	return v
}
