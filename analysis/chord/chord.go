// Package chord scores a smoothed chroma vector against a fixed set of
// root x quality templates via cosine similarity and combines the result
// with a tracked bass pitch class to produce a chord label.
package chord

import (
	"math"

	"github.com/resonare/chordcore/analysis/chroma"
)

// Quality enumerates the closed set of chord qualities this classifier
// recognizes. Iteration order here is the tie-break order: the first
// template encountered in root x quality order wins on equal scores.
type Quality int

const (
	Major Quality = iota
	Minor
	Maj7
	Min7
	Dom7
	Dim
	numQualities
)

// qualityOrder is the fixed iteration order used for both template
// construction and scoring. Tests depend on this order for tie-breaks.
var qualityOrder = [numQualities]Quality{Major, Minor, Maj7, Min7, Dom7, Dim}

var qualityIntervals = map[Quality][]int{
	Major: {0, 4, 7},
	Minor: {0, 3, 7},
	Maj7:  {0, 4, 7, 11},
	Min7:  {0, 3, 7, 10},
	Dom7:  {0, 4, 7, 10},
	Dim:   {0, 3, 6},
}

// Suffix renders the textual quality suffix per the engine's external
// interface: "" major, "m" minor, "maj7", "m7", "7" dom7, "dim".
func (q Quality) Suffix() string {
	switch q {
	case Major:
		return ""
	case Minor:
		return "m"
	case Maj7:
		return "maj7"
	case Min7:
		return "m7"
	case Dom7:
		return "7"
	case Dim:
		return "dim"
	default:
		return "?"
	}
}

var rootNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noChordSentinel is the textual form of "no chord known".
const noChordSentinel = "—"

// Label is a chord identity: a root pitch class, a quality, and an
// optional stable bass pitch class differing from the root.
type Label struct {
	Root    int
	Quality Quality
	BassPC  *int

	// none marks the sentinel label returned by NoChord ("no chord
	// known"). The zero value Label{} is not the sentinel: it is the
	// (root=0, quality=Major) "C" label.
	none bool
}

// NoChord returns the sentinel label rendered as "—".
func NoChord() Label {
	return Label{none: true}
}

// String renders the byte-exact textual form documented for the engine's
// external interface.
func (l Label) String() string {
	if l.none {
		return noChordSentinel
	}
	s := rootNames[((l.Root%12)+12)%12] + l.Quality.Suffix()
	if l.BassPC != nil && *l.BassPC != l.Root {
		s += "/" + rootNames[((*l.BassPC%12)+12)%12]
	}
	return s
}

// Equal reports whether two labels are the same chord identity, including
// their optional bass note. Confidence is not part of identity.
func (l Label) Equal(o Label) bool {
	if l.none != o.none {
		return false
	}
	if l.none {
		return true
	}
	if l.Root != o.Root || l.Quality != o.Quality {
		return false
	}
	if (l.BassPC == nil) != (o.BassPC == nil) {
		return false
	}
	if l.BassPC != nil && *l.BassPC != *o.BassPC {
		return false
	}
	return true
}

type template struct {
	root    int
	quality Quality
	vec     chroma.Vector
}

// templates is the constant 72-entry (12 roots x 6 qualities) table,
// stored contiguously in root x quality order so scoring is a tight inner
// loop of 12-element dot products.
var templates = buildTemplates()

func buildTemplates() []template {
	out := make([]template, 0, 12*int(numQualities))
	for root := 0; root < 12; root++ {
		for _, q := range qualityOrder {
			var v chroma.Vector
			for _, interval := range qualityIntervals[q] {
				v[((root+interval)%12+12)%12] = 1.0
			}
			out = append(out, template{root: root, quality: q, vec: v.L2Normalize()})
		}
	}
	return out
}

// Classifier scores a smoothed chroma vector against the template table
// and folds in a tracked bass pitch class.
type Classifier struct {
	confLow  float64
	confSpan float64
}

// New builds a Classifier with the confidence-mapping affine parameters.
func New(confLow, confSpan float64) *Classifier {
	return &Classifier{confLow: confLow, confSpan: confSpan}
}

// Classify returns the best-scoring chord label and its clamped
// confidence in [0,1]. bassPC, when non-nil, is attached as a slash bass
// if it differs from the winning root.
func (c *Classifier) Classify(smoothed chroma.Vector, bassPC *int) (Label, float64) {
	if smoothed.IsZero() {
		return NoChord(), 0
	}

	bestScore := math.Inf(-1)
	bestRoot := 0
	bestQuality := Major
	for _, tpl := range templates {
		score := dot(smoothed, tpl.vec)
		if score > bestScore {
			bestScore = score
			bestRoot = tpl.root
			bestQuality = tpl.quality
		}
	}

	conf := (bestScore - c.confLow) / c.confSpan
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	label := Label{Root: bestRoot, Quality: bestQuality}
	if bassPC != nil && *bassPC != bestRoot {
		b := *bassPC
		label.BassPC = &b
	}
	return label, conf
}

func dot(a, b chroma.Vector) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
