// Package wakeword decides when the wake phrase has been spoken.
//
// The acoustic model is a black box behind the Scorer interface: it turns an
// audio frame into a confidence score. The Detector applies a hysteresis
// state machine on top of the score stream so a single loud frame never
// triggers and a single dropped frame never discards a build-up.
package wakeword

import (
	"log/slog"
)

// State is the detector's position in the trigger cycle.
type State int

const (
	// StateIdle means no evidence has accumulated.
	StateIdle State = iota
	// StateAccumulating means some frames scored above threshold but not
	// enough to trigger yet.
	StateAccumulating
	// StateTriggered is reported transiently by Feed; the detector resets
	// to idle immediately after.
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Scorer produces a wake-word confidence score per audio frame.
// Implementations wrap a pretrained classifier; the detector treats the
// score stream as opaque.
type Scorer interface {
	// Score returns a confidence in [0, 1] for the given PCM16 frame.
	Score(frame []int16) (float64, error)

	// Reset clears any internal model state (recurrent buffers etc).
	// Called after every trigger and suppression so residue from the wake
	// phrase cannot leak into the next detection cycle.
	Reset()
}

// Config holds the hysteresis parameters.
type Config struct {
	// Threshold is the per-frame score needed to extend a streak.
	Threshold float64

	// Persistence is the streak length that fires a trigger.
	Persistence int

	// MaxPatience is how many consecutive sub-threshold frames a streak
	// survives before being discarded.
	MaxPatience int
}

// DefaultConfig returns the hysteresis parameters tuned for the bundled
// model: 4 frames above 0.7 with tolerance for 2 brief dips.
func DefaultConfig() Config {
	return Config{
		Threshold:   0.7,
		Persistence: 4,
		MaxPatience: 2,
	}
}

// Detector runs the streak/patience state machine over a score stream.
//
// Plain thresholding is too brittle against transient audio dropouts; the
// patience budget smooths short dips without requiring a long absolute
// window, bounding both missed wake words and noise-burst false positives.
type Detector struct {
	cfg    Config
	scorer Scorer
	logger *slog.Logger

	// suppressed reports whether scoring is currently vetoed outright
	// (assistant speaking, or inside the post-interaction cooldown).
	suppressed func() bool

	// quiet reports whether a completed trigger should be silently
	// discarded (quiet-hours policy).
	quiet func() bool

	streak   int
	patience int
}

// Option configures a Detector.
type Option func(*Detector)

// WithSuppression installs the predicate checked before scoring each frame.
// While it returns true, frames are not scored and accumulated state is
// force-reset, so the assistant cannot trigger on its own voice.
func WithSuppression(fn func() bool) Option {
	return func(d *Detector) { d.suppressed = fn }
}

// WithQuietPolicy installs the predicate consulted when a trigger fires.
// If it returns true the trigger is vetoed: the detector resets and no wake
// event is reported. The veto is silent.
func WithQuietPolicy(fn func() bool) Option {
	return func(d *Detector) { d.quiet = fn }
}

// NewDetector creates a detector over the given scorer.
func NewDetector(cfg Config, scorer Scorer, logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		cfg:    cfg,
		scorer: scorer,
		logger: logger.With("component", "wakeword"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed scores one frame and advances the state machine.
// Returns true exactly on the frame that completes a trigger.
func (d *Detector) Feed(frame []int16) (bool, error) {
	if d.suppressed != nil && d.suppressed() {
		d.streak = 0
		d.patience = 0
		return false, nil
	}

	score, err := d.scorer.Score(frame)
	if err != nil {
		// Scoring failures are transient; keep accumulated state.
		return false, err
	}

	if score >= d.cfg.Threshold {
		d.streak++
		d.patience = d.cfg.MaxPatience
	} else if d.streak > 0 && d.patience > 0 {
		// Brief dip: spend patience instead of discarding the streak.
		d.patience--
	} else {
		d.streak = 0
		d.patience = 0
	}

	if d.streak < d.cfg.Persistence {
		return false, nil
	}

	d.Reset()

	if d.quiet != nil && d.quiet() {
		d.logger.Debug("wake trigger vetoed by quiet policy", "score", score)
		return false, nil
	}

	d.logger.Info("wake word detected", "score", score)
	return true, nil
}

// State returns the detector's current state.
func (d *Detector) State() State {
	switch {
	case d.streak == 0:
		return StateIdle
	default:
		return StateAccumulating
	}
}

// Streak returns the current consecutive-frame count, for diagnostics.
func (d *Detector) Streak() int {
	return d.streak
}

// Reset clears the streak, the patience budget and the scorer's internal
// model state. Called after a trigger and after a session completes.
func (d *Detector) Reset() {
	d.streak = 0
	d.patience = 0
	d.scorer.Reset()
}
