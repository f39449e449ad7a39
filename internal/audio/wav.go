package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	pcmFormat   = 1
	wavBitDepth = 16
	monoChannel = 1
)

// WriteWAV writes samples in [-1, 1] as a 16-bit mono PCM WAV file.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	rateErr := ValidateSampleRate(sampleRate)
	if rateErr != nil {
		return rateErr
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	encoder := wav.NewEncoder(file, sampleRate, wavBitDepth, monoChannel, pcmFormat)

	data := make([]int, len(samples))
	for i, s := range samples {
		clipped := math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(clipped * math.MaxInt16))
	}

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: monoChannel, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	writeErr := encoder.Write(buffer)
	encodeErr := encoder.Close()
	closeErr := file.Close()

	switch {
	case writeErr != nil:
		return fmt.Errorf("failed to write wav samples: %w", writeErr)
	case encodeErr != nil:
		return fmt.Errorf("failed to finalize wav file: %w", encodeErr)
	case closeErr != nil:
		return fmt.Errorf("failed to close wav file: %w", closeErr)
	}

	return nil
}
