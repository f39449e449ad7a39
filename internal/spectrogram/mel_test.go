package spectrogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlaneyMelScale(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 7.5, hzToMel(500), 1e-12)
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-12)
	assert.InDelta(t, 42.0, hzToMel(6400), 1e-9)

	for _, hz := range []float64{0, 440, 1000, 3000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-9)
	}
}

func TestMelFilterbank_SlaneyAreaNormalized(t *testing.T) {
	t.Parallel()

	const (
		sampleRate = 22050
		nFFT       = 2048
		nMels      = 128
	)

	weights := melFilterbank(sampleRate, nFFT, nMels, 0, sampleRate/2)
	require.Len(t, weights, nMels)
	require.Len(t, weights[0], nFFT/2+1)

	binWidth := float64(sampleRate) / nFFT

	// Wide filters integrate to one over Hz.
	for _, m := range []int{100, 120, nMels - 1} {
		area := 0.0
		for _, w := range weights[m] {
			require.GreaterOrEqual(t, w, 0.0)
			area += w * binWidth
		}

		assert.InDelta(t, 1.0, area, 0.02, "filter %d", m)
	}
}

func TestHannWindow_Periodic(t *testing.T) {
	t.Parallel()

	window := hannWindow(4)

	expected := []float64{0, 0.5, 1, 0.5}
	for i := range expected {
		assert.InDelta(t, expected[i], window[i], 1e-12)
	}
}

func TestPowerToDB_RefMaxAndTopDB(t *testing.T) {
	t.Parallel()

	spec := [][]float64{{4, 0.4}, {0.04, 0}}
	powerToDB(spec, 80)

	assert.InDelta(t, 0.0, spec[0][0], 1e-9)
	assert.InDelta(t, -10.0, spec[0][1], 1e-9)
	assert.InDelta(t, -20.0, spec[1][0], 1e-9)
	assert.InDelta(t, -80.0, spec[1][1], 1e-9)
}
