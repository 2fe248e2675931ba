package input

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MouseButton identifies a pointer button, numbered per the DOM spec.
type MouseButton int

const (
	ButtonLeft   MouseButton = 0
	ButtonMiddle MouseButton = 1
	ButtonRight  MouseButton = 2
)

func (b MouseButton) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	}
	return "left"
}

// ParseButton resolves a button name. Empty defaults to left.
func ParseButton(s string) (MouseButton, error) {
	switch strings.ToLower(s) {
	case "", "left":
		return ButtonLeft, nil
	case "middle":
		return ButtonMiddle, nil
	case "right":
		return ButtonRight, nil
	default:
		return ButtonLeft, fmt.Errorf("unknown mouse button %q", s)
	}
}

// Mouse event types passed to the dispatcher.
const (
	MouseMoved    = "mouseMoved"
	MousePressed  = "mousePressed"
	MouseReleased = "mouseReleased"
)

// Key event types passed to the dispatcher.
const (
	KeyDown = "keyDown"
	KeyUp   = "keyUp"
	KeyChar = "char"
)

// Dispatcher delivers synthesized events to an engine. Both the mock
// engine and the CDP-backed engine implement it.
type Dispatcher interface {
	DispatchMouseEvent(ctx context.Context, eventType string, x, y float64, button MouseButton, clickCount int, modifiers []Modifier) error
	DispatchScrollEvent(ctx context.Context, x, y, deltaX, deltaY float64) error
	DispatchKeyEvent(ctx context.Context, eventType, key string, modifiers []Modifier) error
}

// ErrOutOfBounds reports a target outside the configured screen bounds.
type ErrOutOfBounds struct {
	X, Y          float64
	Width, Height float64
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("target (%.0f, %.0f) outside screen bounds %dx%d",
		e.X, e.Y, int(e.Width), int(e.Height))
}

// Bounds restricts pointer targets to a screen rectangle.
type Bounds struct {
	Width  float64
	Height float64
}

// Config bundles the knobs for a Synthesizer.
type Config struct {
	Timing TimingConfig
	Path   PathConfig
}

// Synthesizer turns high-level intents (click here, type this) into
// event streams with human pacing and trajectories.
type Synthesizer struct {
	mu     sync.Mutex
	timing *Timing
	paths  *PathGenerator
	disp   Dispatcher
	logger *zap.Logger
	bounds *Bounds
	pos    Point
}

// NewSynthesizer builds a synthesizer with a time-seeded rng.
func NewSynthesizer(cfg Config, disp Dispatcher, logger *zap.Logger) *Synthesizer {
	return newSynthesizer(cfg, disp, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTestSynthesizer builds a fully deterministic synthesizer for tests.
func NewTestSynthesizer(disp Dispatcher, seed int64) *Synthesizer {
	cfg := Config{Timing: TimingConfig{Profile: ProfileInstant, Variance: 0.3}, Path: DefaultPathConfig()}
	return newSynthesizer(cfg, disp, zap.NewNop(), rand.New(rand.NewSource(seed)))
}

func newSynthesizer(cfg Config, disp Dispatcher, logger *zap.Logger, rng *rand.Rand) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		timing: NewTiming(cfg.Timing, rng),
		paths:  NewPathGenerator(cfg.Path, rng),
		disp:   disp,
		logger: logger.Named("input"),
	}
}

// SetBounds restricts future pointer targets. Nil removes the restriction.
func (s *Synthesizer) SetBounds(b *Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = b
}

// Position returns the current pointer position.
func (s *Synthesizer) Position() Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Timing exposes the delay sampler, shared with keyboard synthesis.
func (s *Synthesizer) Timing() *Timing {
	return s.timing
}

func (s *Synthesizer) checkBounds(p Point) error {
	s.mu.Lock()
	b := s.bounds
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	if p.X < 0 || p.Y < 0 || p.X >= b.Width || p.Y >= b.Height {
		return &ErrOutOfBounds{X: p.X, Y: p.Y, Width: b.Width, Height: b.Height}
	}
	return nil
}

// MoveTo walks the pointer from its current position to target along a
// generated path, dispatching a move event per point.
func (s *Synthesizer) MoveTo(ctx context.Context, target Point) error {
	if err := s.checkBounds(target); err != nil {
		return err
	}

	s.mu.Lock()
	start := s.pos
	s.mu.Unlock()

	n := s.paths.PointCount(start.Distance(target))
	path := s.paths.HumanPath(start, target, n)

	for i, p := range path {
		if i > 0 {
			if err := sleep(ctx, s.timing.MoveStep()); err != nil {
				return err
			}
		}
		if err := s.disp.DispatchMouseEvent(ctx, MouseMoved, p.X, p.Y, ButtonLeft, 0, nil); err != nil {
			return fmt.Errorf("move dispatch failed: %w", err)
		}
	}

	s.mu.Lock()
	s.pos = target
	s.mu.Unlock()
	return nil
}

// Click moves to target and performs a press-hold-release cycle.
func (s *Synthesizer) Click(ctx context.Context, target Point, button MouseButton, mods []Modifier) error {
	if err := s.MoveTo(ctx, target); err != nil {
		return err
	}
	if err := sleep(ctx, s.timing.RangeMs(50, 150)); err != nil {
		return err
	}
	return s.clickInPlace(ctx, target, button, mods, 1)
}

func (s *Synthesizer) clickInPlace(ctx context.Context, p Point, button MouseButton, mods []Modifier, clickCount int) error {
	if err := s.disp.DispatchMouseEvent(ctx, MousePressed, p.X, p.Y, button, clickCount, mods); err != nil {
		return fmt.Errorf("press dispatch failed: %w", err)
	}
	if err := sleep(ctx, s.timing.ClickHold()); err != nil {
		return err
	}
	if err := s.disp.DispatchMouseEvent(ctx, MouseReleased, p.X, p.Y, button, clickCount, mods); err != nil {
		return fmt.Errorf("release dispatch failed: %w", err)
	}
	return nil
}

// DoubleClick performs two clicks separated by an OS-plausible gap.
func (s *Synthesizer) DoubleClick(ctx context.Context, target Point) error {
	if err := s.MoveTo(ctx, target); err != nil {
		return err
	}
	if err := s.clickInPlace(ctx, target, ButtonLeft, nil, 1); err != nil {
		return err
	}
	if err := sleep(ctx, s.timing.DoubleClickGap()); err != nil {
		return err
	}
	return s.clickInPlace(ctx, target, ButtonLeft, nil, 2)
}

// Scroll emits wheel events in small steps. The anchor, when non-nil,
// positions the pointer first.
func (s *Synthesizer) Scroll(ctx context.Context, anchor *Point, deltaX, deltaY float64) error {
	pos := s.Position()
	if anchor != nil {
		if err := s.MoveTo(ctx, *anchor); err != nil {
			return err
		}
		pos = *anchor
	}

	steps := int(math.Ceil(math.Abs(deltaX) + math.Abs(deltaY)))
	if steps < 1 {
		steps = 1
	}
	// Cap the step count so large scrolls stay responsive.
	if steps > 40 {
		steps = 40
	}
	stepX := deltaX / float64(steps)
	stepY := deltaY / float64(steps)

	for i := 0; i < steps; i++ {
		if err := s.disp.DispatchScrollEvent(ctx, pos.X, pos.Y, stepX, stepY); err != nil {
			return fmt.Errorf("scroll dispatch failed: %w", err)
		}
		if err := sleep(ctx, s.timing.RangeMs(10, 40)); err != nil {
			return err
		}
	}
	return nil
}

// Drag presses at from, drags along a path to to, and releases.
func (s *Synthesizer) Drag(ctx context.Context, from, to Point) error {
	if err := s.MoveTo(ctx, from); err != nil {
		return err
	}
	if err := s.disp.DispatchMouseEvent(ctx, MousePressed, from.X, from.Y, ButtonLeft, 1, nil); err != nil {
		return fmt.Errorf("drag press failed: %w", err)
	}
	if err := sleep(ctx, s.timing.RangeMs(30, 80)); err != nil {
		return err
	}
	if err := s.MoveTo(ctx, to); err != nil {
		return err
	}
	if err := sleep(ctx, s.timing.RangeMs(30, 80)); err != nil {
		return err
	}
	if err := s.disp.DispatchMouseEvent(ctx, MouseReleased, to.X, to.Y, ButtonLeft, 1, nil); err != nil {
		return fmt.Errorf("drag release failed: %w", err)
	}
	return nil
}

// TypeText sends text one character at a time with frequency-scaled delays.
func (s *Synthesizer) TypeText(ctx context.Context, text string) error {
	for _, r := range text {
		if err := sleep(ctx, s.timing.KeyDelayFor(r)); err != nil {
			return err
		}
		key := string(r)
		if err := s.disp.DispatchKeyEvent(ctx, KeyDown, key, nil); err != nil {
			return fmt.Errorf("key down failed: %w", err)
		}
		if err := s.disp.DispatchKeyEvent(ctx, KeyChar, key, nil); err != nil {
			return fmt.Errorf("key char failed: %w", err)
		}
		if err := s.disp.DispatchKeyEvent(ctx, KeyUp, key, nil); err != nil {
			return fmt.Errorf("key up failed: %w", err)
		}
	}
	return nil
}

// PressKey presses a named key with modifiers. Modifiers go down in the
// given order and come back up in reverse.
func (s *Synthesizer) PressKey(ctx context.Context, key string, mods []Modifier) error {
	canonical, err := NormalizeKey(key)
	if err != nil {
		return err
	}

	for _, m := range mods {
		if err := s.disp.DispatchKeyEvent(ctx, KeyDown, m.String(), nil); err != nil {
			return fmt.Errorf("modifier down failed: %w", err)
		}
	}
	if err := s.disp.DispatchKeyEvent(ctx, KeyDown, canonical, mods); err != nil {
		return fmt.Errorf("key down failed: %w", err)
	}
	if err := sleep(ctx, s.timing.ClickHold()); err != nil {
		return err
	}
	if err := s.disp.DispatchKeyEvent(ctx, KeyUp, canonical, mods); err != nil {
		return fmt.Errorf("key up failed: %w", err)
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := s.disp.DispatchKeyEvent(ctx, KeyUp, mods[i].String(), nil); err != nil {
			return fmt.Errorf("modifier up failed: %w", err)
		}
	}
	return nil
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
