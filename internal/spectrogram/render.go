package spectrogram

import (
	"fmt"
	"image"
	"math"

	"github.com/book-expert/captcha-lab/internal/audio"
	"github.com/book-expert/captcha-lab/internal/imaging"
	"github.com/book-expert/captcha-lab/internal/tensor"
)

const maxIntensity = 255

// Generator renders waveforms into spectrogram images. It is safe for concurrent use.
type Generator struct {
	settings   Settings
	window     []float64
	filterbank [][]float64
}

// NewGenerator validates settings and precomputes the window and mel filterbank.
func NewGenerator(settings Settings) (*Generator, error) {
	err := settings.Validate()
	if err != nil {
		return nil, err
	}

	return &Generator{
		settings:   settings,
		window:     hannWindow(settings.NFFT),
		filterbank: melFilterbank(settings.SampleRate, settings.NFFT, settings.NMels, settings.FMin, settings.FMax),
	}, nil
}

// Settings returns the generator's settings.
func (g *Generator) Settings() Settings {
	return g.settings
}

// MelDB returns the decibel-scaled mel spectrogram of the waveform, indexed
// [mel][frame]. The waveform must already be at the configured sample rate.
func (g *Generator) MelDB(waveform *audio.Waveform) ([][]float64, error) {
	if waveform.SampleRate != g.settings.SampleRate {
		return nil, fmt.Errorf("%w: waveform at %d Hz, generator expects %d Hz",
			audio.ErrInvalidSampleRate, waveform.SampleRate, g.settings.SampleRate)
	}

	if len(waveform.Samples) == 0 {
		return nil, audio.ErrEmptyAudio
	}

	power := powerSpectrogram(waveform.Samples, g.window, g.settings.NFFT, g.settings.HopLength)
	mel := melSpectrogram(power, g.filterbank)
	powerToDB(mel, g.settings.TopDB)

	return mel, nil
}

// Image renders the waveform as a Width x Height grayscale spectrogram. Louder
// bins are darker and low frequencies are at the bottom.
func (g *Generator) Image(waveform *audio.Waveform) (*image.Gray, error) {
	mel, err := g.MelDB(waveform)
	if err != nil {
		return nil, err
	}

	figure := renderFigure(mel, g.settings.FigureWidth, g.settings.FigureHeight)

	return imaging.Resize(figure, g.settings.Width, g.settings.Height)
}

// Load decodes audio data, resamples it and renders its spectrogram image.
func (g *Generator) Load(name string, data []byte) (*image.Gray, error) {
	waveform, err := audio.Load(name, data, g.settings.SampleRate)
	if err != nil {
		return nil, err
	}

	return g.Image(waveform)
}

// Preprocess renders the audio spectrogram and normalizes it into a model input.
func (g *Generator) Preprocess(name string, data []byte) (*tensor.Tensor, error) {
	img, err := g.Load(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return tensor.FromGray(img), nil
}

// renderFigure draws the [mel][frame] matrix into a width x height raster with
// a reversed gray colormap scaled between the matrix minimum and maximum.
func renderFigure(mel [][]float64, width, height int) *image.Gray {
	nMels := len(mel)
	frames := len(mel[0])
	low, high := math.Inf(1), math.Inf(-1)

	for _, row := range mel {
		for _, v := range row {
			low = math.Min(low, v)
			high = math.Max(high, v)
		}
	}

	span := high - low
	figure := image.NewGray(image.Rect(0, 0, width, height))

	for py := range height {
		band := (height - 1 - py) * nMels / height
		row := mel[band]

		for px := range width {
			v := row[px*frames/width]

			norm := 0.0
			if span > 0 {
				norm = (v - low) / span
			}

			figure.Pix[py*figure.Stride+px] = uint8(math.Round(maxIntensity * (1 - norm)))
		}
	}

	return figure
}
