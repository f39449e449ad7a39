// Package spectrogram renders CAPTCHA audio into fixed-size mel-spectrogram images.
//
// The recipe is fixed so that images match what the models were trained on:
// 44.1 kHz mono, 2048-point STFT with hop 512, 128 Slaney mel bands, power in
// decibels relative to the loudest bin (80 dB floor), drawn with a reversed gray
// colormap into a 1310x655 raster and scaled to 128x64.
package spectrogram

import (
	"errors"
	"fmt"

	"github.com/book-expert/captcha-lab/internal/audio"
)

// Default analysis and rendering parameters.
const (
	DefaultNFFT         = 2048
	DefaultHopLength    = 512
	DefaultNMels        = 128
	DefaultTopDB        = 80.0
	DefaultFigureWidth  = 1310
	DefaultFigureHeight = 655
	DefaultWidth        = 128
	DefaultHeight       = 64
	maxFFTSize          = 1 << 16
)

// Constants for error formats.
const (
	errFmtNFFT      = "%w: n_fft must be an even number in [2, %d], got %d"
	errFmtHop       = "%w: hop length must be positive, got %d"
	errFmtMels      = "%w: mel band count must be positive, got %d"
	errFmtFrequency = "%w: need 0 <= fmin < fmax <= sample_rate/2, got fmin=%.1f fmax=%.1f"
	errFmtTopDB     = "%w: top_db must be positive, got %.1f"
	errFmtSize      = "%w: %s must be positive, got %dx%d"
)

// ErrInvalidSettings is wrapped by every settings validation failure.
var ErrInvalidSettings = errors.New("invalid spectrogram settings")

// Settings control mel analysis and rendering.
type Settings struct {
	SampleRate   int
	NFFT         int
	HopLength    int
	NMels        int
	FMin         float64
	FMax         float64
	TopDB        float64
	FigureWidth  int
	FigureHeight int
	Width        int
	Height       int
}

// DefaultSettings returns the settings the CAPTCHA models were trained with.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:   audio.DEFAULT_SAMPLE_RATE,
		NFFT:         DefaultNFFT,
		HopLength:    DefaultHopLength,
		NMels:        DefaultNMels,
		FMin:         0,
		FMax:         audio.DEFAULT_SAMPLE_RATE / 2,
		TopDB:        DefaultTopDB,
		FigureWidth:  DefaultFigureWidth,
		FigureHeight: DefaultFigureHeight,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
	}
}

// Validate checks that the settings describe a usable analysis.
func (s *Settings) Validate() error {
	rateErr := audio.ValidateSampleRate(s.SampleRate)
	if rateErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, rateErr)
	}

	if s.NFFT < 2 || s.NFFT > maxFFTSize || s.NFFT%2 != 0 {
		return fmt.Errorf(errFmtNFFT, ErrInvalidSettings, maxFFTSize, s.NFFT)
	}

	if s.HopLength <= 0 {
		return fmt.Errorf(errFmtHop, ErrInvalidSettings, s.HopLength)
	}

	if s.NMels <= 0 {
		return fmt.Errorf(errFmtMels, ErrInvalidSettings, s.NMels)
	}

	if s.FMin < 0 || s.FMin >= s.FMax || s.FMax > float64(s.SampleRate)/2 {
		return fmt.Errorf(errFmtFrequency, ErrInvalidSettings, s.FMin, s.FMax)
	}

	if s.TopDB <= 0 {
		return fmt.Errorf(errFmtTopDB, ErrInvalidSettings, s.TopDB)
	}

	if s.FigureWidth <= 0 || s.FigureHeight <= 0 {
		return fmt.Errorf(errFmtSize, ErrInvalidSettings, "figure size", s.FigureWidth, s.FigureHeight)
	}

	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf(errFmtSize, ErrInvalidSettings, "output size", s.Width, s.Height)
	}

	return nil
}
