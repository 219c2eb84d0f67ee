// Package bass tracks a stable bass pitch class from a low-frequency
// whitened spectrum via the harmonic product spectrum (HPS), the
// point-wise product of a spectrum with its integer-factor downsamples.
package bass

import (
	"math"

	"github.com/resonare/chordcore/analysis/chroma"
)

// Tracker computes HPS on a bounded bin range each tick and maintains a
// stability window before promoting a detected pitch class to "current".
type Tracker struct {
	fftSize      int
	minHz, maxHz float64
	harmonics    int
	minGapBins   int
	peakGate     float64
	stableMs     float64
	releaseMs    float64

	hps []float64 // scratch, reused and grown

	currentPC      int
	hasCurrent     bool
	candidatePC    int
	hasCandidate   bool
	candidateSince int64
}

// New builds a Tracker for the given bass band, HPS harmonic count, bin
// gap requirement, peak gate, and stability/release dwell times in ms.
func New(fftSize int, minHz, maxHz float64, harmonics, minGapBins int, peakGate, stableMs, releaseMs float64) *Tracker {
	return &Tracker{
		fftSize:    fftSize,
		minHz:      minHz,
		maxHz:      maxHz,
		harmonics:  harmonics,
		minGapBins: minGapBins,
		peakGate:   peakGate,
		stableMs:   stableMs,
		releaseMs:  releaseMs,
	}
}

// Update runs one tick of HPS detection and the stability window, and
// returns the current stable pitch class, or ok=false if none is stable.
func (tr *Tracker) Update(whitenedBass []float64, sampleRateHz int, wallMs int64) (pc int, ok bool) {
	detectedPC, detected := tr.detect(whitenedBass, sampleRateHz)
	tr.advance(detectedPC, detected, wallMs)
	if tr.hasCurrent {
		return tr.currentPC, true
	}
	return 0, false
}

func (tr *Tracker) detect(spec []float64, sampleRateHz int) (pc int, ok bool) {
	n := len(spec)
	if n == 0 {
		return 0, false
	}
	binMin := int(math.Floor(tr.minHz * float64(tr.fftSize) / float64(sampleRateHz)))
	if binMin < 1 {
		binMin = 1
	}
	binMax := int(math.Floor(tr.maxHz * float64(tr.fftSize) / float64(sampleRateHz)))
	if binMax > n-1 {
		binMax = n - 1
	}
	if binMax <= binMin+tr.minGapBins {
		return 0, false
	}

	if cap(tr.hps) < n {
		tr.hps = make([]float64, n)
	}
	tr.hps = tr.hps[:n]
	copy(tr.hps, spec)

	for h := 2; h <= tr.harmonics; h++ {
		for i := binMin; i*h <= binMax && i < n; i++ {
			v := spec[i*h]
			if v < 1e-3 {
				v = 1e-3
			}
			tr.hps[i] *= v
		}
	}

	bestI := -1
	bestV := 0.0
	for i := binMin; i <= binMax; i++ {
		if tr.hps[i] > bestV {
			bestV = tr.hps[i]
			bestI = i
		}
	}
	if bestI < 0 || bestV < tr.peakGate {
		return 0, false
	}

	freq := float64(bestI) * float64(sampleRateHz) / float64(tr.fftSize)
	return chroma.FreqToPitchClass(freq), true
}

func (tr *Tracker) advance(detectedPC int, detected bool, wallMs int64) {
	if !detected {
		if tr.hasCurrent && float64(wallMs-tr.candidateSince) > tr.releaseMs {
			tr.hasCurrent = false
		}
		return
	}
	if tr.hasCurrent && detectedPC == tr.currentPC {
		tr.candidateSince = wallMs
		return
	}
	if !tr.hasCandidate || detectedPC != tr.candidatePC {
		tr.candidatePC = detectedPC
		tr.hasCandidate = true
		tr.candidateSince = wallMs
		return
	}
	// detectedPC == candidatePC but != currentPC (or no current yet)
	if float64(wallMs-tr.candidateSince) >= tr.stableMs {
		tr.currentPC = tr.candidatePC
		tr.hasCurrent = true
	}
}

// Reset clears all stability-window and current/candidate state.
func (tr *Tracker) Reset() {
	tr.hasCurrent = false
	tr.hasCandidate = false
	tr.candidateSince = 0
	tr.currentPC = 0
	tr.candidatePC = 0
}
