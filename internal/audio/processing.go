// Package audio decodes CAPTCHA audio files into mono waveforms at a fixed
// sample rate, ready for spectrogram analysis.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/book-expert/captcha-lab/internal/fsutil"
)

// Constants for default audio settings.
const (
	DEFAULT_SAMPLE_RATE = 44100 // Rate every waveform is resampled to before analysis.
	MAX_SAMPLE_RATE     = 192000
)

// Constants for the PCM layout produced by the MP3 decoder.
const (
	MP3_CHANNELS        = 2
	MP3_BYTES_PER_FRAME = 4
	BIT_DEPTH_8         = 8
)

// Constants for error messages and formats.
const (
	ERR_FMT_SAMPLE_RATE_RANGE = "%w: sample rate must be between 1 and %d Hz, got %d"
	ERR_FMT_UNSUPPORTED       = "%w: %q"
	ERR_FMT_DECODE            = "failed to decode %s audio: %w"
)

// Common errors for the audio package.
var (
	ErrInvalidSampleRate  = errors.New("invalid sample rate")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrInvalidWAV         = errors.New("not a valid WAV file")
	ErrEmptyAudio         = errors.New("audio contains no samples")
	ErrInvalidChannelSize = errors.New("invalid channel count")
)

// Format represents supported audio formats.
type Format string

const (
	FORMAT_WAV Format = "wav"
	FORMAT_MP3 Format = "mp3"
)

// Waveform is a mono signal with samples in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}

	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// FormatOf maps a file name to its audio format by extension.
func FormatOf(name string) (Format, error) {
	switch Format(fsutil.GetFileExtension(name)) {
	case FORMAT_MP3:
		return FORMAT_MP3, nil
	case FORMAT_WAV:
		return FORMAT_WAV, nil
	default:
		return "", fmt.Errorf(ERR_FMT_UNSUPPORTED, ErrUnsupportedFormat, name)
	}
}

// Load decodes the named audio data and resamples it to sampleRate.
func Load(name string, data []byte, sampleRate int) (*Waveform, error) {
	rateErr := ValidateSampleRate(sampleRate)
	if rateErr != nil {
		return nil, rateErr
	}

	waveform, err := Decode(name, data)
	if err != nil {
		return nil, err
	}

	return Resample(waveform, sampleRate)
}

// Decode decodes MP3 or WAV data, chosen by the extension of name, into a mono waveform
// at its native sample rate.
func Decode(name string, data []byte) (*Waveform, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}

	var waveform *Waveform

	switch format {
	case FORMAT_MP3:
		waveform, err = decodeMP3(data)
	case FORMAT_WAV:
		waveform, err = decodeWAV(data)
	}

	if err != nil {
		return nil, fmt.Errorf(ERR_FMT_DECODE, format, err)
	}

	if len(waveform.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyAudio)
	}

	return waveform, nil
}

// decodeMP3 decodes MP3 data. The decoder always yields 16-bit little-endian stereo.
func decodeMP3(data []byte) (*Waveform, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, err
	}

	frames := len(pcm) / MP3_BYTES_PER_FRAME
	samples := make([]float64, frames)

	for i := range frames {
		offset := i * MP3_BYTES_PER_FRAME
		left := int16(uint16(pcm[offset]) | uint16(pcm[offset+1])<<8)
		right := int16(uint16(pcm[offset+2]) | uint16(pcm[offset+3])<<8)
		samples[i] = (float64(left) + float64(right)) / (MP3_CHANNELS * math.MaxInt16)
	}

	return &Waveform{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

func decodeWAV(data []byte) (*Waveform, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	samples, err := mixDown(buffer, int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	return &Waveform{Samples: samples, SampleRate: buffer.Format.SampleRate}, nil
}

// mixDown averages interleaved integer PCM channels into one normalized channel.
func mixDown(buffer *goaudio.IntBuffer, bitDepth int) ([]float64, error) {
	channels := buffer.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannelSize, channels)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	frames := len(buffer.Data) / channels
	samples := make([]float64, frames)

	for i := range frames {
		sum := 0.0

		for c := range channels {
			v := buffer.Data[i*channels+c]
			if bitDepth == BIT_DEPTH_8 {
				// 8-bit PCM is unsigned.
				v -= 1 << (BIT_DEPTH_8 - 1)
			}

			sum += float64(v) / scale
		}

		samples[i] = sum / float64(channels)
	}

	return samples, nil
}

// Resample converts the waveform to targetRate with linear interpolation.
func Resample(w *Waveform, targetRate int) (*Waveform, error) {
	rateErr := ValidateSampleRate(targetRate)
	if rateErr != nil {
		return nil, rateErr
	}

	rateErr = ValidateSampleRate(w.SampleRate)
	if rateErr != nil {
		return nil, rateErr
	}

	if w.SampleRate == targetRate || len(w.Samples) == 0 {
		return &Waveform{Samples: w.Samples, SampleRate: targetRate}, nil
	}

	ratio := float64(w.SampleRate) / float64(targetRate)
	outLen := int(math.Ceil(float64(len(w.Samples)) / ratio))
	out := make([]float64, outLen)
	last := len(w.Samples) - 1

	for i := range out {
		pos := float64(i) * ratio
		left := int(pos)

		if left >= last {
			out[i] = w.Samples[last]

			continue
		}

		frac := pos - float64(left)
		out[i] = w.Samples[left]*(1-frac) + w.Samples[left+1]*frac
	}

	return &Waveform{Samples: out, SampleRate: targetRate}, nil
}

// ValidateSampleRate checks that a sample rate is within supported bounds.
func ValidateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidSampleRate, MAX_SAMPLE_RATE, sampleRate)
	}

	return nil
}
