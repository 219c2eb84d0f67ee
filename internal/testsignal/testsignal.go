// Package testsignal generates synthetic byte-quantized magnitude spectra
// and time-domain buffers for exercising the analysis pipeline in tests.
// It is the only place in the module that computes an FFT: the core
// pipeline itself consumes precomputed spectra.
package testsignal

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// MagnitudeSpectrum synthesizes a real time-domain buffer of length
// fftSize containing sinusoids at freqsHz (each with equal amplitude),
// windows it with a Hann window, takes its FFT, and returns the
// byte-quantized magnitude of the first fftSize/2+1 bins scaled so the
// loudest bin lands near 255.
func MagnitudeSpectrum(freqsHz []float64, sampleRateHz, fftSize int) []byte {
	frame := make([]float64, fftSize)
	for _, f := range freqsHz {
		for i := range frame {
			frame[i] += math.Sin(2 * math.Pi * f * float64(i) / float64(sampleRateHz))
		}
	}
	window.Apply(frame, window.Hann)

	spectrum := fft.FFTReal(frame)
	n := fftSize/2 + 1
	mags := make([]float64, n)
	maxMag := 0.0
	for i := 0; i < n; i++ {
		m := cabs(spectrum[i])
		mags[i] = m
		if m > maxMag {
			maxMag = m
		}
	}

	out := make([]byte, n)
	if maxMag == 0 {
		return out
	}
	for i, m := range mags {
		v := int(255*m/maxMag + 0.5)
		if v > 255 {
			v = 255
		}
		out[i] = byte(v)
	}
	return out
}

func cabs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// SilentSpectrum returns an all-zero byte spectrum of the given length.
func SilentSpectrum(n int) []byte {
	return make([]byte, n)
}

// FlatSpectrum returns a byte spectrum of the given length with every bin
// set to value, for simulating a broadband transient.
func FlatSpectrum(value byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// SineBuffer returns a time-domain buffer of n samples of a sine wave at
// freqHz and the given amplitude, sampled at sampleRateHz.
func SineBuffer(freqHz float64, amplitude float64, sampleRateHz, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRateHz))
	}
	return out
}

// FlatBuffer returns a time-domain buffer of n samples all set to value.
func FlatBuffer(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Close reports whether a and b are within eps of each other.
func Close(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}
