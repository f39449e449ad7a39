package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// volume is an activation stored row-major as [y][x][channel].
type volume struct {
	shape Shape
	data  []float64
}

func newVolume(shape Shape) *volume {
	return &volume{shape: shape, data: make([]float64, shape.Size())}
}

// layer is one step of the forward pass, built for a fixed input shape.
type layer interface {
	outputShape() Shape
	// parameters returns the layer's parameter slices in weights-file order.
	parameters() [][]float64
	forward(in *volume) *volume
}

func paramCount(l layer) int {
	n := 0
	for _, p := range l.parameters() {
		n += len(p)
	}

	return n
}

func buildLayer(spec LayerSpec, in Shape) (layer, error) {
	switch spec.Type {
	case LayerConv2D:
		return newConv2D(spec, in)
	case LayerMaxPooling2D:
		return newMaxPool(spec, in)
	case LayerBatchNormalization:
		return newBatchNorm(spec, in), nil
	case LayerDropout:
		return identity{shape: in}, nil
	case LayerFlatten:
		return flatten{in: in}, nil
	case LayerDense:
		return newDense(spec, in)
	default:
		return nil, fmt.Errorf("%w: unknown layer type %q", ErrInvalidArchitecture, spec.Type)
	}
}

func pair(values []int, name string) (int, int, error) {
	if len(values) != 2 || values[0] <= 0 || values[1] <= 0 {
		return 0, 0, fmt.Errorf("%w: %s must be two positive integers, got %v", ErrInvalidArchitecture, name, values)
	}

	return values[0], values[1], nil
}

type conv2D struct {
	in, out    Shape
	kh, kw     int
	padTop     int
	padLeft    int
	kernel     []float64 // [kh][kw][in channels][filters]
	bias       []float64
	activation activation
}

func newConv2D(spec LayerSpec, in Shape) (*conv2D, error) {
	kh, kw, err := pair(spec.Kernel, "conv2d kernel")
	if err != nil {
		return nil, err
	}

	if spec.Filters <= 0 {
		return nil, fmt.Errorf("%w: conv2d filters must be positive", ErrInvalidArchitecture)
	}

	act, err := parseActivation(spec.Activation)
	if err != nil {
		return nil, err
	}

	conv := &conv2D{in: in, kh: kh, kw: kw, activation: act}

	switch spec.Padding {
	case PaddingSame:
		conv.out = Shape{Height: in.Height, Width: in.Width, Channels: spec.Filters}
		conv.padTop = (kh - 1) / 2
		conv.padLeft = (kw - 1) / 2
	case PaddingValid, "":
		conv.out = Shape{Height: in.Height - kh + 1, Width: in.Width - kw + 1, Channels: spec.Filters}
	default:
		return nil, fmt.Errorf("%w: unknown padding %q", ErrInvalidArchitecture, spec.Padding)
	}

	if conv.out.Height <= 0 || conv.out.Width <= 0 {
		return nil, fmt.Errorf("%w: conv2d kernel %dx%d larger than input %s", ErrInvalidArchitecture, kh, kw, in)
	}

	conv.kernel = make([]float64, kh*kw*in.Channels*spec.Filters)
	conv.bias = make([]float64, spec.Filters)

	return conv, nil
}

func (c *conv2D) outputShape() Shape      { return c.out }
func (c *conv2D) parameters() [][]float64 { return [][]float64{c.kernel, c.bias} }

func (c *conv2D) forward(in *volume) *volume {
	out := newVolume(c.out)
	filters := c.out.Channels
	channels := c.in.Channels

	for y := range c.out.Height {
		for x := range c.out.Width {
			pixel := out.data[(y*c.out.Width+x)*filters : (y*c.out.Width+x+1)*filters]
			copy(pixel, c.bias)

			for ky := range c.kh {
				iy := y + ky - c.padTop
				if iy < 0 || iy >= c.in.Height {
					continue
				}

				for kx := range c.kw {
					ix := x + kx - c.padLeft
					if ix < 0 || ix >= c.in.Width {
						continue
					}

					source := in.data[(iy*c.in.Width+ix)*channels : (iy*c.in.Width+ix+1)*channels]
					base := (ky*c.kw + kx) * channels

					for ic, v := range source {
						if v == 0 {
							continue
						}

						row := c.kernel[(base+ic)*filters : (base+ic+1)*filters]
						floats.AddScaled(pixel, v, row)
					}
				}
			}

			c.activation(pixel)
		}
	}

	return out
}

type maxPool struct {
	in, out Shape
	ph, pw  int
}

func newMaxPool(spec LayerSpec, in Shape) (*maxPool, error) {
	ph, pw, err := pair(spec.Pool, "max_pooling2d pool")
	if err != nil {
		return nil, err
	}

	out := Shape{Height: in.Height / ph, Width: in.Width / pw, Channels: in.Channels}
	if out.Height == 0 || out.Width == 0 {
		return nil, fmt.Errorf("%w: pool %dx%d larger than input %s", ErrInvalidArchitecture, ph, pw, in)
	}

	return &maxPool{in: in, out: out, ph: ph, pw: pw}, nil
}

func (m *maxPool) outputShape() Shape      { return m.out }
func (m *maxPool) parameters() [][]float64 { return nil }

func (m *maxPool) forward(in *volume) *volume {
	out := newVolume(m.out)
	channels := m.in.Channels

	for y := range m.out.Height {
		for x := range m.out.Width {
			for ch := range channels {
				best := math.Inf(-1)

				for py := range m.ph {
					for px := range m.pw {
						iy, ix := y*m.ph+py, x*m.pw+px
						best = math.Max(best, in.data[(iy*m.in.Width+ix)*channels+ch])
					}
				}

				out.data[(y*m.out.Width+x)*channels+ch] = best
			}
		}
	}

	return out
}

type batchNorm struct {
	shape    Shape
	epsilon  float64
	gamma    []float64
	beta     []float64
	mean     []float64
	variance []float64
}

func newBatchNorm(spec LayerSpec, in Shape) *batchNorm {
	epsilon := spec.Epsilon
	if epsilon == 0 {
		epsilon = defaultBatchNormEpsilon
	}

	return &batchNorm{
		shape:    in,
		epsilon:  epsilon,
		gamma:    make([]float64, in.Channels),
		beta:     make([]float64, in.Channels),
		mean:     make([]float64, in.Channels),
		variance: make([]float64, in.Channels),
	}
}

func (b *batchNorm) outputShape() Shape { return b.shape }

func (b *batchNorm) parameters() [][]float64 {
	return [][]float64{b.gamma, b.beta, b.mean, b.variance}
}

func (b *batchNorm) forward(in *volume) *volume {
	out := newVolume(b.shape)
	channels := b.shape.Channels

	for i, v := range in.data {
		ch := i % channels
		out.data[i] = b.gamma[ch]*(v-b.mean[ch])/math.Sqrt(b.variance[ch]+b.epsilon) + b.beta[ch]
	}

	return out
}

// identity is used for dropout, which is inactive at inference time.
type identity struct {
	shape Shape
}

func (i identity) outputShape() Shape         { return i.shape }
func (i identity) parameters() [][]float64    { return nil }
func (i identity) forward(in *volume) *volume { return in }

type flatten struct {
	in Shape
}

func (f flatten) outputShape() Shape      { return Shape{Height: 1, Width: 1, Channels: f.in.Size()} }
func (f flatten) parameters() [][]float64 { return nil }

func (f flatten) forward(in *volume) *volume {
	return &volume{shape: f.outputShape(), data: in.data}
}

type dense struct {
	inputs     int
	out        Shape
	kernel     []float64 // [inputs][units]
	bias       []float64
	activation activation
}

func newDense(spec LayerSpec, in Shape) (*dense, error) {
	if in.Height != 1 || in.Width != 1 {
		return nil, fmt.Errorf("%w: dense needs a flattened input, got %s", ErrInvalidArchitecture, in)
	}

	if spec.Units <= 0 {
		return nil, fmt.Errorf("%w: dense units must be positive", ErrInvalidArchitecture)
	}

	act, err := parseActivation(spec.Activation)
	if err != nil {
		return nil, err
	}

	return &dense{
		inputs:     in.Channels,
		out:        Shape{Height: 1, Width: 1, Channels: spec.Units},
		kernel:     make([]float64, in.Channels*spec.Units),
		bias:       make([]float64, spec.Units),
		activation: act,
	}, nil
}

func (d *dense) outputShape() Shape      { return d.out }
func (d *dense) parameters() [][]float64 { return [][]float64{d.kernel, d.bias} }

func (d *dense) forward(in *volume) *volume {
	out := newVolume(d.out)
	units := d.out.Channels
	copy(out.data, d.bias)

	for i, v := range in.data {
		if v == 0 {
			continue
		}

		floats.AddScaled(out.data, v, d.kernel[i*units:(i+1)*units])
	}

	d.activation(out.data)

	return out
}
