// Package engine orchestrates the analysis pipeline: it owns every
// component's persistent state, threads each tick's buffers through the
// stages in a fixed order, and exposes the external tick/events/override
// interface.
package engine

import (
	"errors"
	"fmt"

	"github.com/resonare/chordcore/analysis/bass"
	"github.com/resonare/chordcore/analysis/chord"
	"github.com/resonare/chordcore/analysis/chroma"
	"github.com/resonare/chordcore/analysis/harmonicmask"
	"github.com/resonare/chordcore/analysis/hysteresis"
	"github.com/resonare/chordcore/analysis/tempo"
	"github.com/resonare/chordcore/analysis/whiten"
	"github.com/resonare/chordcore/config"
	"github.com/resonare/chordcore/logging"
)

// ErrInvalidFrame is wrapped with the offending detail when a tick's
// frame breaks the buffer-length or sample-rate contract.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame carries one tick's inputs: the main and bass magnitude spectra
// (byte-quantized 0..255), the time-domain buffer, the sample rate they
// were computed at, the two independent clocks, and playback state.
type Frame struct {
	MagMain []byte
	MagBass []byte
	Time    []float64

	SampleRateHz int
	WallMS       int64
	MediaTimeS   float64
	IsPlaying    bool
}

// TickResult is the per-tick output: the stable chord's textual form, its
// confidence, the current BPM estimate (nil if unavailable), and a copy
// of the smoothed chroma vector.
type TickResult struct {
	Chord      string
	Confidence float64
	BPM        *int
	Chroma     [12]float64
}

// Engine owns all persistent analysis state. It is not safe for
// concurrent Tick calls; independent tracks require independent Engines.
type Engine struct {
	cfg    config.Config
	logger logging.Logger

	whitenerMain *whiten.Whitener
	whitenerBass *whiten.Whitener
	mask         *harmonicmask.HarmonicMask
	mapper       *chroma.Mapper
	smoother     *chroma.Smoother
	bassTracker  *bass.Tracker
	classifier   *chord.Classifier
	hyst         *hysteresis.Hysteresis
	bpm          *tempo.Estimator

	haveFrame  bool
	mainLen    int
	bassLen    int
	timeLen    int
	lastChroma chroma.Vector
}

// New builds an Engine with the default no-op logger.
func New(cfg config.Config) (*Engine, error) {
	return NewWithLogger(cfg, &logging.NoOpLogger{})
}

// NewWithLogger builds an Engine with an explicit logger, validating cfg
// first.
func NewWithLogger(cfg config.Config, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error(err, "engine construction failed configuration validation")
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: logger}
	e.wire()
	logger.Info("engine constructed", logging.Fields{"fft_size": cfg.FFTSize})
	return e, nil
}

func (e *Engine) wire() {
	c := e.cfg
	e.whitenerMain = whiten.New(c.WhitenHalfWindow, c.WhitenEps)
	e.whitenerBass = whiten.New(c.WhitenHalfWindow, c.WhitenEps)
	e.mask = harmonicmask.New(c.HarmonicTcMs, c.HPSSGamma, c.WhitenEps)
	e.mapper = chroma.New(c.FFTSize, c.FMin, c.FMax, c.ChromaMagGate)
	e.smoother = chroma.NewSmoother(c.ChromaTcMs)
	e.bassTracker = bass.New(c.FFTSize, c.BassMinHz, c.BassMaxHz, c.HPSHarmonics, c.BassMinGapBins, c.BassPeakGate, c.BassStableMs, c.BassReleaseMs)
	e.classifier = chord.New(c.ConfLow, c.ConfSpan)
	e.hyst = hysteresis.New(c.ChordStableMs)
	e.bpm = tempo.New(c.EnergyHistoryLen, c.OnsetRefractoryS, c.OnsetStdK, c.BPMMin, c.BPMMax)
}

// Tick threads frame f through the pipeline in the fixed stage order and
// returns the resulting TickResult.
func (e *Engine) Tick(f Frame) (TickResult, error) {
	if err := e.validateFrame(f); err != nil {
		return TickResult{}, err
	}
	e.haveFrame = true
	e.mainLen = len(f.MagMain)
	e.bassLen = len(f.MagBass)
	e.timeLen = len(f.Time)

	whitenedMain := e.whitenerMain.Whiten(f.MagMain)
	whitenedBass := e.whitenerBass.Whiten(f.MagBass)

	mask := e.mask.Update(whitenedMain, f.WallMS)

	rawChroma := e.mapper.Map(whitenedMain, mask, f.SampleRateHz)
	smoothChroma := e.smoother.Smooth(rawChroma, f.WallMS)
	e.lastChroma = smoothChroma

	var bassPC *int
	if pc, ok := e.bassTracker.Update(whitenedBass, f.SampleRateHz, f.WallMS); ok {
		bassPC = &pc
	}

	candidate, confidence := e.classifier.Classify(smoothChroma, bassPC)
	stable := e.hyst.Update(candidate, confidence, f.WallMS, f.MediaTimeS)

	var bpmResult *int
	if bpmVal, ok := e.bpm.Update(f.Time, f.MediaTimeS); ok {
		bpmResult = &bpmVal
	}

	return TickResult{
		Chord:      stable.String(),
		Confidence: confidence,
		BPM:        bpmResult,
		Chroma:     smoothChroma,
	}, nil
}

func (e *Engine) validateFrame(f Frame) error {
	if f.SampleRateHz <= 0 {
		return fmt.Errorf("%w: sample_rate_hz must be > 0, got %d", ErrInvalidFrame, f.SampleRateHz)
	}
	nyquist := float64(f.SampleRateHz) / 2
	if e.cfg.BassMaxHz >= nyquist {
		return fmt.Errorf("%w: bass_max_hz %g is not strictly within Nyquist %g for sample_rate_hz %d", ErrInvalidFrame, e.cfg.BassMaxHz, nyquist, f.SampleRateHz)
	}
	if e.haveFrame {
		if len(f.MagMain) != e.mainLen {
			return fmt.Errorf("%w: mag_main length changed from %d to %d without Reset", ErrInvalidFrame, e.mainLen, len(f.MagMain))
		}
		if len(f.MagBass) != e.bassLen {
			return fmt.Errorf("%w: mag_bass length changed from %d to %d without Reset", ErrInvalidFrame, e.bassLen, len(f.MagBass))
		}
		if len(f.Time) != e.timeLen {
			return fmt.Errorf("%w: time length changed from %d to %d without Reset", ErrInvalidFrame, e.timeLen, len(f.Time))
		}
	}
	return nil
}

// Events returns the append-only timeline log.
func (e *Engine) Events() []hysteresis.TimelineEvent {
	return e.hyst.Events()
}

// OverrideEvent marks events()[index] with user-supplied text.
func (e *Engine) OverrideEvent(index int, text string) error {
	if err := e.hyst.OverrideEvent(index, text); err != nil {
		return err
	}
	e.logger.Info("timeline event overridden", logging.Fields{"index": index})
	return nil
}

// Reset clears EMAs, bass state, hysteresis, and the event log, and
// forgets the buffer-length contract so the next tick may use new sizes.
// Configuration and scratch buffer capacity are preserved.
func (e *Engine) Reset() {
	e.mask.Reset()
	e.smoother.Reset()
	e.bassTracker.Reset()
	e.hyst.Reset()
	e.bpm.Reset()
	e.haveFrame = false
	e.lastChroma = chroma.Vector{}
	e.logger.Info("playback state reset")
}
