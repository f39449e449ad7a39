package spectrogram

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Slaney mel scale constants.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
	powerAmin    = 1e-10
	decibelScale = 10.0
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}

	return hz / melFSp
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}

	return mel * melFSp
}

// melFilterbank builds nMels triangular filters over the nFFT/2+1 FFT bins with
// Slaney area normalization.
func melFilterbank(sampleRate, nFFT, nMels int, fMin, fMax float64) [][]float64 {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	floats.Span(fftFreqs, 0, float64(sampleRate)/2)

	melPoints := make([]float64, nMels+2)
	floats.Span(melPoints, hzToMel(fMin), hzToMel(fMax))

	hzPoints := make([]float64, len(melPoints))
	for i, m := range melPoints {
		hzPoints[i] = melToHz(m)
	}

	weights := make([][]float64, nMels)

	for m := range nMels {
		lowerWidth := hzPoints[m+1] - hzPoints[m]
		upperWidth := hzPoints[m+2] - hzPoints[m+1]
		norm := 2 / (hzPoints[m+2] - hzPoints[m])
		row := make([]float64, bins)

		for k, f := range fftFreqs {
			lower := (f - hzPoints[m]) / lowerWidth
			upper := (hzPoints[m+2] - f) / upperWidth
			row[k] = math.Max(0, math.Min(lower, upper)) * norm
		}

		weights[m] = row
	}

	return weights
}

// hannWindow returns the periodic Hann window of length n.
func hannWindow(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}

	return window
}

// powerSpectrogram computes |STFT|^2 with centred, zero-padded frames.
// The result is indexed [frame][bin].
func powerSpectrogram(samples, window []float64, nFFT, hop int) [][]float64 {
	pad := nFFT / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	frames := 1 + (len(padded)-nFFT)/hop
	fft := fourier.NewFFT(nFFT)
	frame := make([]float64, nFFT)
	coefficients := make([]complex128, nFFT/2+1)
	power := make([][]float64, frames)

	for t := range frames {
		start := t * hop
		floats.MulTo(frame, padded[start:start+nFFT], window)
		coefficients = fft.Coefficients(coefficients, frame)

		row := make([]float64, len(coefficients))
		for k, c := range coefficients {
			magnitude := cmplx.Abs(c)
			row[k] = magnitude * magnitude
		}

		power[t] = row
	}

	return power
}

// melSpectrogram projects a power spectrogram onto the filterbank. The result is
// indexed [mel][frame].
func melSpectrogram(power, filterbank [][]float64) [][]float64 {
	mel := make([][]float64, len(filterbank))

	for m, filter := range filterbank {
		row := make([]float64, len(power))
		for t, spectrum := range power {
			row[t] = floats.Dot(filter, spectrum)
		}

		mel[m] = row
	}

	return mel
}

// powerToDB converts power to decibels relative to the maximum, flooring the
// result topDB below the peak. It modifies spec in place.
func powerToDB(spec [][]float64, topDB float64) {
	ref := powerAmin
	for _, row := range spec {
		if len(row) > 0 {
			ref = math.Max(ref, floats.Max(row))
		}
	}

	refDB := decibelScale * math.Log10(ref)
	peak := math.Inf(-1)

	for _, row := range spec {
		for i, v := range row {
			row[i] = decibelScale*math.Log10(math.Max(powerAmin, v)) - refDB
			peak = math.Max(peak, row[i])
		}
	}

	floor := peak - topDB

	for _, row := range spec {
		for i, v := range row {
			row[i] = math.Max(v, floor)
		}
	}
}
