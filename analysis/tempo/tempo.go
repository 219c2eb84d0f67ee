// Package tempo estimates beats per minute from short-window time-domain
// energy: onset detection against an adaptive threshold, then tempo from
// the median inter-onset interval with octave folding.
package tempo

import (
	"sort"

	"github.com/resonare/chordcore/internal/ringstat"
)

const (
	minRingSamples  = 20
	onsetWindowS    = 8.0
	minOnsets       = 4
	minIOIs         = 3
	ioiMin          = 0.20
	ioiMax          = 2.0
	maxFoldingSteps = 8
)

// Estimator tracks frame energy in a bounded ring and recent onset times,
// producing a folded BPM estimate once enough history has accumulated.
type Estimator struct {
	refractoryS float64
	stdK        float64
	bpmMin      int
	bpmMax      int

	ring *ringstat.Ring

	onsets        []float64
	hasLastOnset  bool
	lastOnsetTime float64

	iois []float64 // scratch: filtered inter-onset intervals, reused per tick
}

// New builds an Estimator with the given ring length, refractory gap
// (seconds), adaptive-threshold multiplier, and BPM fold range.
func New(ringLen int, refractoryS, stdK float64, bpmMin, bpmMax int) *Estimator {
	return &Estimator{
		ring:        ringstat.New(ringLen),
		refractoryS: refractoryS,
		stdK:        stdK,
		bpmMin:      bpmMin,
		bpmMax:      bpmMax,
	}
}

// Update advances the estimator by one tick's time-domain buffer and
// returns the current BPM estimate, or ok=false if none is available yet.
func (e *Estimator) Update(timeDomain []float64, mediaTimeS float64) (bpm int, ok bool) {
	energy := meanSquare(timeDomain)
	e.ring.Push(energy)
	if e.ring.Len() < minRingSamples {
		return 0, false
	}

	mean, std := e.ring.MeanStdDev()
	threshold := mean + e.stdK*std

	if energy > threshold && (!e.hasLastOnset || mediaTimeS-e.lastOnsetTime > e.refractoryS) {
		e.onsets = append(e.onsets, mediaTimeS)
		e.lastOnsetTime = mediaTimeS
		e.hasLastOnset = true
		e.trimOnsets(mediaTimeS)
	}

	if len(e.onsets) < minOnsets {
		return 0, false
	}

	e.iois = e.iois[:0]
	for i := 1; i < len(e.onsets); i++ {
		d := e.onsets[i] - e.onsets[i-1]
		if d > ioiMin && d < ioiMax {
			e.iois = append(e.iois, d)
		}
	}
	if len(e.iois) < minIOIs {
		return 0, false
	}

	m := median(e.iois)
	if m <= 0 {
		return 0, false
	}
	bpmF := 60.0 / m
	bpmF = e.fold(bpmF)
	return int(bpmF + 0.5), true
}

func (e *Estimator) trimOnsets(mediaTimeS float64) {
	cutoff := mediaTimeS - onsetWindowS
	i := 0
	for i < len(e.onsets) && e.onsets[i] < cutoff {
		i++
	}
	if i > 0 {
		e.onsets = append(e.onsets[:0], e.onsets[i:]...)
	}
}

func (e *Estimator) fold(bpm float64) float64 {
	for i := 0; bpm < float64(e.bpmMin) && i < maxFoldingSteps; i++ {
		bpm *= 2
	}
	for i := 0; bpm > float64(e.bpmMax) && i < maxFoldingSteps; i++ {
		bpm /= 2
	}
	return bpm
}

func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}

// median sorts xs in place and returns its median. Callers pass scratch
// slices they no longer need in original order.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// Reset clears ring history and onset bookkeeping.
func (e *Estimator) Reset() {
	e.ring.Reset()
	e.onsets = e.onsets[:0]
	e.iois = e.iois[:0]
	e.hasLastOnset = false
	e.lastOnsetTime = 0
}
