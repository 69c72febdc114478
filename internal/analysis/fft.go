package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the magnitude of the first half of the DFT of data
// after removing its mean, so bin 0 carries no DC offset.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centred := make([]float64, len(data))
	for i, v := range data {
		centred[i] = v - mean
	}

	spectrum := fft.FFTReal(centred)
	ps := make([]float64, len(spectrum)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// Dominant returns the strongest non-zero bin of ps and its frequency in Hz
// for a series of n samples taken every dt seconds.
func Dominant(ps []float64, n int, dt float64) (freq float64, bin int) {
	maxPower := 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > maxPower {
			maxPower = ps[i]
			bin = i
		}
	}
	if bin == 0 || n == 0 || dt <= 0 {
		return 0, bin
	}
	return float64(bin) / (float64(n) * dt), bin
}
