// Package config holds the immutable-after-construction configuration for
// the chordcore analysis engine and validates it at construction time.
package config

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by Validate with the offending field and
// reason, mirroring the engine's frame-validation sentinel ErrInvalidFrame.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every tunable recognized by the analysis pipeline. All
// fields are read-only after Engine construction.
type Config struct {
	FFTSize          int     `json:"fft_size"`
	WhitenHalfWindow int     `json:"whiten_half_window"`
	WhitenEps        float64 `json:"whiten_eps"`

	FMin float64 `json:"f_min"`
	FMax float64 `json:"f_max"`

	BassMinHz float64 `json:"bass_min_hz"`
	BassMaxHz float64 `json:"bass_max_hz"`

	HPSHarmonics int `json:"hps_harmonics"`

	ChromaTcMs   float64 `json:"chroma_tc_ms"`
	HarmonicTcMs float64 `json:"harmonic_tc_ms"`
	HPSSGamma    float64 `json:"hpss_gamma"`

	ChordStableMs  float64 `json:"chord_stable_ms"`
	BassStableMs   float64 `json:"bass_stable_ms"`
	BassReleaseMs  float64 `json:"bass_release_ms"`
	BassMinGapBins int     `json:"bass_min_gap_bins"`

	OnsetRefractoryS float64 `json:"onset_refractory_s"`
	BPMMin           int     `json:"bpm_min"`
	BPMMax           int     `json:"bpm_max"`
	EnergyHistoryLen int     `json:"energy_history_len"`
	OnsetStdK        float64 `json:"onset_std_k"`

	ChromaMagGate float64 `json:"chroma_mag_gate"`
	BassPeakGate  float64 `json:"bass_peak_gate"`

	ConfLow  float64 `json:"conf_low"`
	ConfSpan float64 `json:"conf_span"`
}

// DefaultConfig returns the documented defaults for every option.
func DefaultConfig() Config {
	return Config{
		FFTSize:          4096,
		WhitenHalfWindow: 25,
		WhitenEps:        1e-6,

		FMin: 55,
		FMax: 5500,

		BassMinHz: 30,
		BassMaxHz: 280,

		HPSHarmonics: 4,

		ChromaTcMs:   220,
		HarmonicTcMs: 110,
		HPSSGamma:    1.8,

		ChordStableMs:  320,
		BassStableMs:   280,
		BassReleaseMs:  900,
		BassMinGapBins: 8,

		OnsetRefractoryS: 0.12,
		BPMMin:           70,
		BPMMax:           180,
		EnergyHistoryLen: 90,
		OnsetStdK:        2.0,

		ChromaMagGate: 0.02,
		BassPeakGate:  0.02,

		ConfLow:  0.20,
		ConfSpan: 0.80,
	}
}

// Validate checks the ranges documented in the engine's external interface:
// all numeric fields finite, fft_size a power of two >= 512, and every
// dwell or time-constant field non-negative. The bass band's Nyquist bound
// is not checked here, since Config carries no sample rate; the engine
// checks it per frame.
func (c Config) Validate() error {
	if c.FFTSize < 512 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("%w: fft_size: must be a power of two >= 512, got %d", ErrInvalidConfig, c.FFTSize)
	}
	if c.WhitenHalfWindow < 0 {
		return fmt.Errorf("%w: whiten_half_window: must be >= 0, got %d", ErrInvalidConfig, c.WhitenHalfWindow)
	}
	if err := requireFinite("whiten_eps", c.WhitenEps); err != nil {
		return err
	}
	if err := requireFinite("f_min", c.FMin); err != nil {
		return err
	}
	if err := requireFinite("f_max", c.FMax); err != nil {
		return err
	}
	if c.FMin < 0 || c.FMax <= c.FMin {
		return fmt.Errorf("%w: f_min/f_max: require 0 <= f_min < f_max, got %g/%g", ErrInvalidConfig, c.FMin, c.FMax)
	}
	if err := requireFinite("bass_min_hz", c.BassMinHz); err != nil {
		return err
	}
	if err := requireFinite("bass_max_hz", c.BassMaxHz); err != nil {
		return err
	}
	if c.BassMinHz < 0 || c.BassMaxHz <= c.BassMinHz {
		return fmt.Errorf("%w: bass_min_hz/bass_max_hz: require 0 <= bass_min_hz < bass_max_hz, got %g/%g", ErrInvalidConfig, c.BassMinHz, c.BassMaxHz)
	}
	if c.HPSHarmonics < 2 {
		return fmt.Errorf("%w: hps_harmonics: must be >= 2, got %d", ErrInvalidConfig, c.HPSHarmonics)
	}
	for name, v := range map[string]float64{
		"chroma_tc_ms":       c.ChromaTcMs,
		"harmonic_tc_ms":     c.HarmonicTcMs,
		"chord_stable_ms":    c.ChordStableMs,
		"bass_stable_ms":     c.BassStableMs,
		"bass_release_ms":    c.BassReleaseMs,
		"onset_refractory_s": c.OnsetRefractoryS,
	} {
		if err := requireFinite(name, v); err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: %s: must be >= 0, got %g", ErrInvalidConfig, name, v)
		}
	}
	if err := requireFinite("hpss_gamma", c.HPSSGamma); err != nil {
		return err
	}
	if c.BassMinGapBins < 0 {
		return fmt.Errorf("%w: bass_min_gap_bins: must be >= 0, got %d", ErrInvalidConfig, c.BassMinGapBins)
	}
	if c.BPMMin <= 0 || c.BPMMax <= c.BPMMin {
		return fmt.Errorf("%w: bpm_min/bpm_max: require 0 < bpm_min < bpm_max, got %d/%d", ErrInvalidConfig, c.BPMMin, c.BPMMax)
	}
	if c.EnergyHistoryLen < 20 {
		return fmt.Errorf("%w: energy_history_len: must be >= 20, got %d", ErrInvalidConfig, c.EnergyHistoryLen)
	}
	if err := requireFinite("onset_std_k", c.OnsetStdK); err != nil {
		return err
	}
	if err := requireFinite("chroma_mag_gate", c.ChromaMagGate); err != nil {
		return err
	}
	if err := requireFinite("bass_peak_gate", c.BassPeakGate); err != nil {
		return err
	}
	if err := requireFinite("conf_low", c.ConfLow); err != nil {
		return err
	}
	if err := requireFinite("conf_span", c.ConfSpan); err != nil {
		return err
	}
	if c.ConfSpan <= 0 {
		return fmt.Errorf("%w: conf_span: must be > 0, got %g", ErrInvalidConfig, c.ConfSpan)
	}
	return nil
}

func requireFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s: must be finite, got %v", ErrInvalidConfig, field, v)
	}
	return nil
}
