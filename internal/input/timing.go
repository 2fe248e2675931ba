// Package input synthesizes human-like mouse and keyboard activity.
//
// Delays are drawn from truncated normal distributions whose ranges depend on
// the selected timing profile, so repeated operations never produce the
// machine-regular cadence detection heuristics look for. All randomness flows
// through an injected *rand.Rand, which keeps the synthesis deterministic
// under a fixed seed.
package input

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// TimingProfile selects a base speed for synthesized input.
type TimingProfile int

const (
	ProfileNormal TimingProfile = iota
	ProfileFast
	ProfileSlow
	ProfileInstant
	ProfileCustom
)

// ParseProfile maps a config string to a TimingProfile.
func ParseProfile(s string) (TimingProfile, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return ProfileNormal, nil
	case "fast":
		return ProfileFast, nil
	case "slow":
		return ProfileSlow, nil
	case "instant":
		return ProfileInstant, nil
	case "custom":
		return ProfileCustom, nil
	default:
		return ProfileNormal, fmt.Errorf("unknown timing profile %q", s)
	}
}

func (p TimingProfile) String() string {
	switch p {
	case ProfileNormal:
		return "normal"
	case ProfileFast:
		return "fast"
	case ProfileSlow:
		return "slow"
	case ProfileInstant:
		return "instant"
	case ProfileCustom:
		return "custom"
	}
	return "unknown"
}

// msRange is an inclusive delay range in milliseconds.
type msRange struct {
	min float64
	max float64
}

// TimingConfig parameterizes delay sampling.
type TimingConfig struct {
	Profile TimingProfile
	// Variance widens or narrows the sampled distribution. The standard
	// deviation is (max-min) * Variance / 2.
	Variance float64
	// CustomMinMs / CustomMaxMs feed ProfileCustom. The other profiles
	// ignore them.
	CustomMinMs float64
	CustomMaxMs float64
}

// DefaultTimingConfig returns the normal profile with standard variance.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{Profile: ProfileNormal, Variance: 0.3}
}

// Timing samples human-plausible delays for a single session.
type Timing struct {
	mu  sync.Mutex
	cfg TimingConfig
	rng *rand.Rand
}

// NewTiming builds a sampler around the given rng. A nil rng gets a
// time-seeded one.
func NewTiming(cfg TimingConfig, rng *rand.Rand) *Timing {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Variance <= 0 {
		cfg.Variance = 0.3
	}
	return &Timing{cfg: cfg, rng: rng}
}

func (t *Timing) clickHoldRange() msRange {
	base := msRange{70, 150}
	switch t.cfg.Profile {
	case ProfileFast:
		return msRange{base.min * 0.7, base.max * 0.7}
	case ProfileSlow:
		return msRange{base.min * 1.3, base.max * 1.3}
	case ProfileInstant:
		return msRange{10, 30}
	case ProfileCustom:
		min := t.cfg.CustomMinMs
		if min < 10 {
			min = 10
		}
		max := t.cfg.CustomMaxMs
		if max > 500 {
			max = 500
		}
		return msRange{min, max}
	}
	return base
}

func (t *Timing) keyDelayRange() msRange {
	switch t.cfg.Profile {
	case ProfileFast:
		return msRange{50, 100}
	case ProfileSlow:
		return msRange{180, 350}
	case ProfileInstant:
		return msRange{5, 20}
	case ProfileCustom:
		return msRange{t.cfg.CustomMinMs, t.cfg.CustomMaxMs}
	}
	return msRange{80, 180}
}

func (t *Timing) moveStepRange() msRange {
	switch t.cfg.Profile {
	case ProfileFast:
		return msRange{2, 8}
	case ProfileSlow:
		return msRange{10, 25}
	case ProfileInstant:
		return msRange{1, 3}
	case ProfileCustom:
		return msRange{t.cfg.CustomMinMs / 10, t.cfg.CustomMaxMs / 10}
	}
	return msRange{5, 15}
}

func (t *Timing) reactionRange() msRange {
	switch t.cfg.Profile {
	case ProfileFast:
		return msRange{100, 200}
	case ProfileSlow:
		return msRange{250, 450}
	case ProfileInstant:
		return msRange{10, 50}
	case ProfileCustom:
		return msRange{t.cfg.CustomMinMs * 2, t.cfg.CustomMaxMs * 2}
	}
	return msRange{150, 300}
}

func (t *Timing) pauseRange() msRange {
	switch t.cfg.Profile {
	case ProfileFast:
		return msRange{300, 800}
	case ProfileSlow:
		return msRange{800, 2500}
	case ProfileInstant:
		return msRange{50, 200}
	case ProfileCustom:
		return msRange{t.cfg.CustomMinMs * 5, t.cfg.CustomMaxMs * 5}
	}
	return msRange{500, 1500}
}

// ClickHold returns how long a button stays pressed during a click.
func (t *Timing) ClickHold() time.Duration {
	return t.sample(t.clickHoldRange(), t.cfg.Variance)
}

// KeyDelay returns the pause before the next keystroke.
func (t *Timing) KeyDelay() time.Duration {
	return t.sample(t.keyDelayRange(), t.cfg.Variance)
}

// KeyDelayFor scales the keystroke pause by the character's frequency class.
// Common letters are typed faster than symbols.
func (t *Timing) KeyDelayFor(r rune) time.Duration {
	base := t.KeyDelay()
	return time.Duration(float64(base) * CharDelayMultiplier(r))
}

// MoveStep returns the pause between consecutive pointer path points.
func (t *Timing) MoveStep() time.Duration {
	return t.sample(t.moveStepRange(), t.cfg.Variance)
}

// Reaction returns a human reaction delay before acting on a new target.
func (t *Timing) Reaction() time.Duration {
	return t.sample(t.reactionRange(), t.cfg.Variance)
}

// Pause returns a longer idle pause, e.g. between scripted steps.
func (t *Timing) Pause() time.Duration {
	return t.sample(t.pauseRange(), t.cfg.Variance)
}

// DoubleClickGap returns the delay between the two clicks of a double click.
// The gap is bounded by OS double-click detection, so it ignores the profile.
func (t *Timing) DoubleClickGap() time.Duration {
	return t.sample(msRange{50, 150}, 0.2)
}

// RangeMs draws a delay from an arbitrary millisecond range using the
// session variance.
func (t *Timing) RangeMs(minMs, maxMs float64) time.Duration {
	return t.sample(msRange{minMs, maxMs}, t.cfg.Variance)
}

// Float64 exposes a uniform sample from the session rng.
func (t *Timing) Float64() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64()
}

// sample draws from a normal distribution centered on the range midpoint and
// clamps the result into the range. A degenerate range collapses to its min.
func (t *Timing) sample(r msRange, variance float64) time.Duration {
	if r.min >= r.max {
		return time.Duration(r.min * float64(time.Millisecond))
	}
	mean := (r.min + r.max) / 2
	stdDev := (r.max - r.min) * variance / 2

	t.mu.Lock()
	n := t.rng.NormFloat64()
	t.mu.Unlock()

	ms := n*stdDev + mean
	if ms < r.min {
		ms = r.min
	}
	if ms > r.max {
		ms = r.max
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// FittsDelay estimates pointer travel time for a target using Fitts's law,
// with a small random factor so repeated movements differ.
func (t *Timing) FittsDelay(distance, targetSize float64) time.Duration {
	if targetSize <= 0 {
		targetSize = 1
	}
	const a, b = 50.0, 150.0
	ms := a + b*math.Log2(distance/targetSize+1)

	t.mu.Lock()
	jitter := 0.85 + t.rng.Float64()*0.3
	t.mu.Unlock()

	return time.Duration(ms * jitter * float64(time.Millisecond))
}
