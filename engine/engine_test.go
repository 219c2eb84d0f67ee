package engine

import (
	"math"
	"testing"

	"github.com/resonare/chordcore/config"
	"github.com/resonare/chordcore/internal/testsignal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error constructing engine: %v", err)
	}
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FFTSize = 100 // not a power of two >= 512
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for invalid config")
	}
}

func TestSilentInputStaysAtSentinel(t *testing.T) {
	e := newTestEngine(t)
	nMain := e.cfg.FFTSize/2 + 1
	nBass := nMain
	nTime := 512

	frame := Frame{
		MagMain:      testsignal.SilentSpectrum(nMain),
		MagBass:      testsignal.SilentSpectrum(nBass),
		Time:         testsignal.FlatBuffer(0, nTime),
		SampleRateHz: 44100,
		IsPlaying:    true,
	}

	for i := 0; i < 1000; i++ {
		frame.WallMS = int64(i * 20)
		frame.MediaTimeS = float64(i) * 0.02
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if res.Chord != "—" {
			t.Fatalf("tick %d: expected sentinel chord, got %q", i, res.Chord)
		}
		if res.Confidence != 0 {
			t.Fatalf("tick %d: expected zero confidence, got %g", i, res.Confidence)
		}
		if res.BPM != nil {
			t.Fatalf("tick %d: expected nil bpm, got %d", i, *res.BPM)
		}
		for k, v := range res.Chroma {
			if v != 0 {
				t.Fatalf("tick %d bin %d: expected zero chroma, got %g", i, k, v)
			}
		}
	}
	if len(e.Events()) != 0 {
		t.Fatalf("expected no timeline events, got %d", len(e.Events()))
	}
}

func TestFrameLengthChangeWithoutResetIsRejected(t *testing.T) {
	e := newTestEngine(t)
	nMain := e.cfg.FFTSize/2 + 1
	frame := Frame{
		MagMain:      testsignal.SilentSpectrum(nMain),
		MagBass:      testsignal.SilentSpectrum(nMain),
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: 44100,
	}
	if _, err := e.Tick(frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame.MagMain = testsignal.SilentSpectrum(nMain + 1)
	if _, err := e.Tick(frame); err == nil {
		t.Fatalf("expected error on buffer length change without Reset")
	}
	e.Reset()
	if _, err := e.Tick(frame); err != nil {
		t.Fatalf("unexpected error after Reset with new length: %v", err)
	}
}

func TestInvalidSampleRateRejected(t *testing.T) {
	e := newTestEngine(t)
	frame := Frame{
		MagMain:      testsignal.SilentSpectrum(10),
		MagBass:      testsignal.SilentSpectrum(10),
		Time:         testsignal.FlatBuffer(0, 10),
		SampleRateHz: 0,
	}
	if _, err := e.Tick(frame); err == nil {
		t.Fatalf("expected error for sample_rate_hz <= 0")
	}
}

func TestCMajorTriadStabilizesWithinWindow(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	nMain := fftSize/2 + 1

	freqs := []float64{261.63, 329.63, 392.00}
	var allFreqs []float64
	for _, f := range freqs {
		allFreqs = append(allFreqs, f, 2*f, 3*f, 4*f)
	}
	mainSpec := testsignal.MagnitudeSpectrum(allFreqs, sr, fftSize)
	bassSpec := testsignal.SilentSpectrum(nMain)

	frame := Frame{
		MagMain:      mainSpec,
		MagBass:      bassSpec,
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: sr,
		IsPlaying:    true,
	}

	stabilizedAtMs := -1
	for i := 0; i < 30; i++ {
		frame.WallMS = int64(i * 50)
		frame.MediaTimeS = float64(i) * 0.05
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if res.Chord == "C" && stabilizedAtMs < 0 {
			stabilizedAtMs = int(frame.WallMS)
		}
	}
	if stabilizedAtMs < 0 {
		t.Fatalf("chord never stabilized to C")
	}
	if stabilizedAtMs < 320 || stabilizedAtMs > 700 {
		t.Fatalf("expected stabilization in [320,700]ms, got %dms", stabilizedAtMs)
	}

	events := e.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 timeline event, got %d", len(events))
	}
	if events[0].Chord.String() != "C" || events[0].MediaTimeS != 0 {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestCMajorTriadWithGBassStabilizesToSlashChord(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	nMain := fftSize/2 + 1

	freqs := []float64{261.63, 329.63, 392.00}
	var allFreqs []float64
	for _, f := range freqs {
		allFreqs = append(allFreqs, f, 2*f, 3*f, 4*f)
	}
	mainSpec := testsignal.MagnitudeSpectrum(allFreqs, sr, fftSize)
	// G2 with its own harmonic series, so HPS reinforces the fundamental
	// the same way analysis/bass's own tests do.
	bassSpec := testsignal.MagnitudeSpectrum([]float64{98.00, 196.00, 294.00, 392.00}, sr, fftSize)

	frame := Frame{
		MagMain:      mainSpec,
		MagBass:      bassSpec,
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: sr,
		IsPlaying:    true,
	}

	stabilizedAtMs := -1
	for i := 0; i < 40; i++ {
		frame.WallMS = int64(i * 50)
		frame.MediaTimeS = float64(i) * 0.05
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if res.Chord == "C/G" && stabilizedAtMs < 0 {
			stabilizedAtMs = int(frame.WallMS)
		}
	}
	if stabilizedAtMs < 0 {
		t.Fatalf("chord never stabilized to C/G")
	}
	// Both chord (320ms) and bass (280ms) dwell must have elapsed.
	if stabilizedAtMs < 320 {
		t.Fatalf("expected stabilization no earlier than 320ms, got %dms", stabilizedAtMs)
	}

	// Once stable, a final tick should still report C/G.
	frame.WallMS = int64(39 * 50)
	frame.MediaTimeS = float64(39) * 0.05
	res, err := e.Tick(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Chord != "C/G" {
		t.Fatalf("expected chord to remain C/G, got %q", res.Chord)
	}
}

func TestTransientClickDoesNotFlipStableChord(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	nMain := fftSize/2 + 1

	freqs := []float64{261.63, 329.63, 392.00}
	var allFreqs []float64
	for _, f := range freqs {
		allFreqs = append(allFreqs, f, 2*f, 3*f, 4*f)
	}
	triadMain := testsignal.MagnitudeSpectrum(allFreqs, sr, fftSize)
	bassSpec := testsignal.SilentSpectrum(nMain)

	frame := Frame{
		MagMain:      triadMain,
		MagBass:      bassSpec,
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: sr,
		IsPlaying:    true,
	}

	tick := 0
	next := func(magMain []byte) TickResult {
		frame.MagMain = magMain
		frame.WallMS = int64(tick * 50)
		frame.MediaTimeS = float64(tick) * 0.05
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		tick++
		return res
	}

	var stable TickResult
	for i := 0; i < 20; i++ {
		stable = next(triadMain)
	}
	if stable.Chord != "C" {
		t.Fatalf("expected warmup to settle on C before the transient, got %q", stable.Chord)
	}
	eventsBefore := len(e.Events())

	// One frame of a broad transient: flat 0.8 across every main bin.
	transient := testsignal.FlatSpectrum(204, nMain)
	duringTransient := next(transient)
	if duringTransient.Chord != "C" {
		t.Fatalf("expected chord to stay C through the transient, got %q", duringTransient.Chord)
	}

	for i := 0; i < 30; i++ {
		res := next(triadMain)
		if res.Chord != "C" {
			t.Fatalf("tick %d after transient: expected chord to remain C, got %q", i, res.Chord)
		}
	}
	if len(e.Events()) != eventsBefore {
		t.Fatalf("expected no new timeline events from the transient, before=%d after=%d", eventsBefore, len(e.Events()))
	}
}

func TestMetronome120BPMStabilizesThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	nMain := fftSize/2 + 1
	silentMain := testsignal.SilentSpectrum(nMain)

	frame := Frame{
		MagMain:      silentMain,
		MagBass:      silentMain,
		SampleRateHz: sr,
		IsPlaying:    true,
	}

	spacingS := 0.02
	onsetPeriodS := 0.5
	mediaTime := 0.0
	sinceOnset := 0.0

	var lastBPM *int
	for i := 0; i < 250; i++ {
		sinceOnset += spacingS
		amp := 0.02
		if sinceOnset >= onsetPeriodS {
			amp = 0.9
			sinceOnset = 0
		}
		frame.Time = testsignal.FlatBuffer(amp, 64)
		frame.WallMS = int64(mediaTime * 1000)
		frame.MediaTimeS = mediaTime
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if res.BPM != nil {
			lastBPM = res.BPM
		}
		mediaTime += spacingS
	}
	if lastBPM == nil {
		t.Fatalf("expected a stable BPM estimate")
	}
	if *lastBPM < 119 || *lastBPM > 121 {
		t.Fatalf("expected BPM ~120, got %d", *lastBPM)
	}
}

func TestMetronome40BPMFoldsThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	nMain := fftSize/2 + 1
	silentMain := testsignal.SilentSpectrum(nMain)

	frame := Frame{
		MagMain:      silentMain,
		MagBass:      silentMain,
		SampleRateHz: sr,
		IsPlaying:    true,
	}

	spacingS := 0.02
	onsetPeriodS := 1.5 // 40 BPM -> folds once into [70,180] -> 80
	mediaTime := 0.0
	sinceOnset := 0.0

	var lastBPM *int
	for i := 0; i < 500; i++ {
		sinceOnset += spacingS
		amp := 0.02
		if sinceOnset >= onsetPeriodS {
			amp = 0.9
			sinceOnset = 0
		}
		frame.Time = testsignal.FlatBuffer(amp, 64)
		frame.WallMS = int64(mediaTime * 1000)
		frame.MediaTimeS = mediaTime
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if res.BPM != nil {
			lastBPM = res.BPM
		}
		mediaTime += spacingS
	}
	if lastBPM == nil {
		t.Fatalf("expected a stable BPM estimate")
	}
	if *lastBPM != 80 {
		t.Fatalf("expected folded BPM 80, got %d", *lastBPM)
	}
}

func TestChromaAlwaysUnitNormOrZero(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	mainSpec := testsignal.MagnitudeSpectrum([]float64{261.63, 329.63, 392.00}, sr, fftSize)
	frame := Frame{
		MagMain:      mainSpec,
		MagBass:      testsignal.SilentSpectrum(fftSize/2 + 1),
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: sr,
	}
	for i := 0; i < 10; i++ {
		frame.WallMS = int64(i * 50)
		frame.MediaTimeS = float64(i) * 0.05
		res, err := e.Tick(frame)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		var norm float64
		for _, v := range res.Chroma {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if !(testsignal.Close(norm, 0, 1e-5) || testsignal.Close(norm, 1, 1e-5)) {
			t.Fatalf("tick %d: chroma norm %g not in {0,1}", i, norm)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Fatalf("tick %d: confidence out of range: %g", i, res.Confidence)
		}
	}
}

func TestOverrideEventOnEngine(t *testing.T) {
	e := newTestEngine(t)
	sr := 44100
	fftSize := e.cfg.FFTSize
	mainSpec := testsignal.MagnitudeSpectrum([]float64{261.63, 329.63, 392.00}, sr, fftSize)
	frame := Frame{
		MagMain:      mainSpec,
		MagBass:      testsignal.SilentSpectrum(fftSize/2 + 1),
		Time:         testsignal.FlatBuffer(0, 512),
		SampleRateHz: sr,
	}
	for i := 0; i < 15; i++ {
		frame.WallMS = int64(i * 50)
		frame.MediaTimeS = float64(i) * 0.05
		if _, err := e.Tick(frame); err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
	}
	if len(e.Events()) == 0 {
		t.Fatalf("expected at least one event before override")
	}
	if err := e.OverrideEvent(0, "corrected by user"); err != nil {
		t.Fatalf("unexpected error on override: %v", err)
	}
	events := e.Events()
	if !events[0].Overridden || events[0].UserText != "corrected by user" {
		t.Fatalf("override did not apply: %+v", events[0])
	}
}
