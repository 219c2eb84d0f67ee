// Package ringstat provides a fixed-capacity ring buffer with running
// mean/standard-deviation queries backed by gonum's stat package.
package ringstat

import "gonum.org/v1/gonum/stat"

// Ring is a fixed-capacity circular buffer of float64 samples.
type Ring struct {
	buf   []float64
	cap   int
	start int
	size  int

	scratch []float64 // reused by values(), grown to cap once and never shrunk
}

// New builds a Ring with the given capacity.
func New(capacity int) *Ring {
	return &Ring{buf: make([]float64, capacity), cap: capacity}
}

// Push appends a sample, overwriting the oldest entry once the ring is
// full.
func (r *Ring) Push(v float64) {
	if r.cap == 0 {
		return
	}
	idx := (r.start + r.size) % r.cap
	if r.size < r.cap {
		r.buf[idx] = v
		r.size++
	} else {
		r.buf[r.start] = v
		r.start = (r.start + 1) % r.cap
	}
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int { return r.size }

// values returns the stored samples in insertion order, linearized into
// r.scratch since the ring may wrap. The returned slice aliases r.scratch
// and is only valid until the next call.
func (r *Ring) values() []float64 {
	if cap(r.scratch) < r.cap {
		r.scratch = make([]float64, r.cap)
	}
	out := r.scratch[:r.size]
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%r.cap]
	}
	return out
}

// MeanStdDev returns the sample mean and standard deviation over the
// buffer's current contents.
func (r *Ring) MeanStdDev() (mean, std float64) {
	if r.size == 0 {
		return 0, 0
	}
	vals := r.values()
	mean, std = stat.MeanStdDev(vals, nil)
	return mean, std
}

// Reset empties the ring without releasing its backing array.
func (r *Ring) Reset() {
	r.start = 0
	r.size = 0
}
