// Package harmonicmask maintains a per-bin exponential moving average of a
// whitened spectrum and derives a soft mask separating stationary
// (harmonic) energy from transient (percussive) energy.
package harmonicmask

import "math"

// HarmonicMask tracks H[i], a bin-wise EMA of the whitened main spectrum,
// and from it a per-bin soft mask weight r[i] in [0,1].
type HarmonicMask struct {
	tauMs float64
	gamma float64
	eps   float64

	H         []float64 // EMA state, grown and never shrunk
	lastTsMs  int64
	hasLastTs bool

	mask []float64 // scratch: reused output buffer
}

// New builds a HarmonicMask with time constant tauMs (clamped to >= 20)
// and exponent gamma.
func New(tauMs, gamma, eps float64) *HarmonicMask {
	if tauMs < 20 {
		tauMs = 20
	}
	return &HarmonicMask{tauMs: tauMs, gamma: gamma, eps: eps}
}

// Update advances the EMA state by dtMs (elapsed wall time since the
// previous call) given the current whitened frame x, and returns the soft
// mask for this tick. The returned slice aliases internal scratch and is
// valid only until the next call.
func (m *HarmonicMask) Update(x []float64, wallMs int64) []float64 {
	n := len(x)
	if cap(m.H) < n {
		grown := make([]float64, n)
		copy(grown, m.H)
		m.H = grown
	}
	m.H = m.H[:n]
	if cap(m.mask) < n {
		m.mask = make([]float64, n)
	}
	m.mask = m.mask[:n]

	cold := !m.hasLastTs
	var dtMs float64
	if !cold {
		dtMs = float64(wallMs - m.lastTsMs)
		if dtMs < 0 {
			dtMs = 0
		}
	}
	m.lastTsMs = wallMs
	m.hasLastTs = true

	// On a cold call (first call, or first after Reset) dtMs is 0, so alpha
	// is 0 and H keeps its zero state: the mask is zero on that frame and
	// warms up over the following frames as H catches up with the input.
	alpha := 1 - math.Exp(-dtMs/m.tauMs)

	for i := 0; i < n; i++ {
		m.H[i] = (1-alpha)*m.H[i] + alpha*x[i]
		p := x[i] - m.H[i]
		if p < 0 {
			p = 0
		}
		denom := m.H[i] + p + m.eps
		r := m.H[i] / denom
		m.mask[i] = math.Pow(r, m.gamma)
	}
	return m.mask
}

// Reset zeroes the EMA state; scratch capacity is preserved.
func (m *HarmonicMask) Reset() {
	for i := range m.H {
		m.H[i] = 0
	}
	m.hasLastTs = false
	m.lastTsMs = 0
}
