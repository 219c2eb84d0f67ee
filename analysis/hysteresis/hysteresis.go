// Package hysteresis debounces a stream of candidate chord labels by a
// dwell time and records timeline events on confirmed changes.
package hysteresis

import "github.com/resonare/chordcore/analysis/chord"

// TimelineEvent records a confirmed chord change. The event log is
// append-only except for OverrideEvent, which is the only permitted
// mutation.
type TimelineEvent struct {
	MediaTimeS float64
	Chord      chord.Label
	Confidence float64
	Overridden bool
	UserText   string
}

// Hysteresis implements the three-state dwell machine: last (the
// currently stable chord), candidate (the chord being proposed), and the
// wall-clock time the candidate has held since.
type Hysteresis struct {
	stableMs float64

	lastChord      chord.Label
	candidateChord chord.Label
	hasCandidate   bool
	candidateSince int64

	events []TimelineEvent
}

// New builds a Hysteresis with the given stable-dwell time in ms. The
// initial last_chord is the sentinel "no chord known".
func New(stableMs float64) *Hysteresis {
	return &Hysteresis{
		stableMs:  stableMs,
		lastChord: chord.NoChord(),
	}
}

// Update advances the dwell machine with this tick's candidate label,
// confidence, and clocks, and returns the current stable label.
func (h *Hysteresis) Update(candidate chord.Label, confidence float64, wallMs int64, mediaTimeS float64) chord.Label {
	if candidate.Equal(h.lastChord) {
		h.candidateSince = wallMs
		return h.lastChord
	}
	if !h.hasCandidate || !candidate.Equal(h.candidateChord) {
		h.candidateChord = candidate
		h.hasCandidate = true
		h.candidateSince = wallMs
		return h.lastChord
	}
	if float64(wallMs-h.candidateSince) >= h.stableMs {
		h.lastChord = h.candidateChord
		if len(h.events) == 0 || !h.events[len(h.events)-1].Chord.Equal(h.lastChord) {
			h.events = append(h.events, TimelineEvent{
				MediaTimeS: mediaTimeS,
				Chord:      h.lastChord,
				Confidence: 1.0,
			})
		}
	}
	return h.lastChord
}

// Events returns the append-only timeline log. The returned slice is a
// copy; callers cannot mutate the internal log through it.
func (h *Hysteresis) Events() []TimelineEvent {
	out := make([]TimelineEvent, len(h.events))
	copy(out, h.events)
	return out
}

// OverrideEvent marks events[index] as overridden with the given user
// text. It is the only permitted mutation of the event log.
func (h *Hysteresis) OverrideEvent(index int, text string) error {
	if index < 0 || index >= len(h.events) {
		return errOutOfRange(index, len(h.events))
	}
	h.events[index].Overridden = true
	h.events[index].UserText = text
	return nil
}

// Reset clears all dwell state and the event log.
func (h *Hysteresis) Reset() {
	h.lastChord = chord.NoChord()
	h.hasCandidate = false
	h.candidateSince = 0
	h.events = nil
}
