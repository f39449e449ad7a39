package audio_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/captcha-lab/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)

	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}

	return out
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := sine(440, 16000, 0.25)

	require.NoError(t, audio.WriteWAV(path, samples, 16000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	waveform, err := audio.Decode("tone.wav", data)
	require.NoError(t, err)

	assert.Equal(t, 16000, waveform.SampleRate)
	require.Len(t, waveform.Samples, len(samples))

	for i := range samples {
		assert.InDelta(t, samples[i], waveform.Samples[i], 1e-3)
	}
}

func TestLoad_ResamplesToTarget(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, audio.WriteWAV(path, sine(300, 22050, 1), 22050))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	waveform, err := audio.Load("tone.wav", data, audio.DEFAULT_SAMPLE_RATE)
	require.NoError(t, err)

	assert.Equal(t, audio.DEFAULT_SAMPLE_RATE, waveform.SampleRate)
	assert.InDelta(t, 1.0, waveform.Duration(), 0.001)
}

func TestResample_Linear(t *testing.T) {
	t.Parallel()

	in := &audio.Waveform{Samples: []float64{0, 1, 0, -1}, SampleRate: 4}

	out, err := audio.Resample(in, 8)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 1, 0.5, 0, -0.5, -1, -1}, out.Samples)
}

func TestDecode_MP3(t *testing.T) {
	t.Parallel()

	// 24 silent MPEG-1 Layer III frames, 44.1 kHz mono.
	data, err := os.ReadFile(filepath.Join("testdata", "silence.mp3"))
	require.NoError(t, err)

	waveform, err := audio.Decode("silence.mp3", data)
	require.NoError(t, err)

	assert.Equal(t, audio.DEFAULT_SAMPLE_RATE, waveform.SampleRate)
	assert.Len(t, waveform.Samples, 24*1152)
	assert.InDelta(t, 0.627, waveform.Duration(), 0.001)

	for _, sample := range waveform.Samples {
		require.InDelta(t, 0.0, sample, 1e-9)
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := audio.Decode("clip.ogg", []byte("whatever"))
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = audio.Decode("clip.wav", []byte("not a riff file"))
	require.Error(t, err)

	_, err = audio.Decode("clip.mp3", []byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestValidateSampleRate(t *testing.T) {
	t.Parallel()

	require.NoError(t, audio.ValidateSampleRate(44100))
	require.ErrorIs(t, audio.ValidateSampleRate(0), audio.ErrInvalidSampleRate)
	require.ErrorIs(t, audio.ValidateSampleRate(audio.MAX_SAMPLE_RATE+1), audio.ErrInvalidSampleRate)
}
