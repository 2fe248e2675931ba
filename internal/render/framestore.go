// Package render holds the off-screen frame store. Paint callbacks
// deliver BGRA pixel buffers with dirty rectangles; the store keeps the
// latest composited frame and serves screenshots from it.
package render

import (
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
)

const bytesPerPixel = 4

// DirtyRect is a changed region of the frame in pixel coordinates.
type DirtyRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FullRect covers the entire frame.
func FullRect(width, height int) DirtyRect {
	return DirtyRect{Width: width, Height: height}
}

// IsEmpty reports whether the rect covers no pixels.
func (r DirtyRect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersects reports whether two rects overlap.
func (r DirtyRect) Intersects(o DirtyRect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Union returns the smallest rect containing both.
func (r DirtyRect) Union(o DirtyRect) DirtyRect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.Width, o.X+o.Width)
	y2 := max(r.Y+r.Height, o.Y+o.Height)
	return DirtyRect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Clip bounds the rect to a width by height frame.
func (r DirtyRect) Clip(width, height int) DirtyRect {
	x1 := max(r.X, 0)
	y1 := max(r.Y, 0)
	x2 := min(r.X+r.Width, width)
	y2 := min(r.Y+r.Height, height)
	if x2 <= x1 || y2 <= y1 {
		return DirtyRect{}
	}
	return DirtyRect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ErrRegionOutOfBounds reports a capture region outside the frame.
type ErrRegionOutOfBounds struct {
	X, Y, Width, Height int
	FrameWidth          int
	FrameHeight         int
}

func (e *ErrRegionOutOfBounds) Error() string {
	return fmt.Sprintf("region %dx%d at (%d,%d) outside %dx%d frame",
		e.Width, e.Height, e.X, e.Y, e.FrameWidth, e.FrameHeight)
}

// frameBuffer is one BGRA pixel buffer with row stride width*4.
type frameBuffer struct {
	width  int
	height int
	data   []byte
}

func newFrameBuffer(width, height int) *frameBuffer {
	return &frameBuffer{
		width:  width,
		height: height,
		data:   make([]byte, width*height*bytesPerPixel),
	}
}

// ScreenInfo describes the virtual screen backing the off-screen view.
type ScreenInfo struct {
	Width             int
	Height            int
	DeviceScaleFactor float64
}

// Store keeps the latest painted frame behind a double buffer. Partial
// paints update only the dirty union; full paints replace the buffer
// wholesale.
type Store struct {
	mu           sync.RWMutex
	front        *frameBuffer
	back         *frameBuffer
	frameCount   uint64
	dirty        []DirtyRect
	paintPending bool
	scale        float64
	logger       *zap.Logger
}

// NewStore creates a frame store for a width by height view.
func NewStore(width, height int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		front:  newFrameBuffer(width, height),
		back:   newFrameBuffer(width, height),
		scale:  1.0,
		logger: logger,
	}
}

// Size returns the current frame dimensions.
func (s *Store) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.front.width, s.front.height
}

// FrameCount returns how many paints the store has absorbed.
func (s *Store) FrameCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameCount
}

// DirtyRects returns a copy of the regions painted since the last call
// to TakeDirtyRects.
func (s *Store) DirtyRects() []DirtyRect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DirtyRect, len(s.dirty))
	copy(out, s.dirty)
	return out
}

// TakeDirtyRects returns the accumulated regions and clears the list.
func (s *Store) TakeDirtyRects() []DirtyRect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.dirty
	s.dirty = nil
	return out
}

// MarkPaintPending flags that an invalidation is outstanding.
func (s *Store) MarkPaintPending() {
	s.mu.Lock()
	s.paintPending = true
	s.mu.Unlock()
}

// PaintPending reports whether a paint is outstanding.
func (s *Store) PaintPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paintPending
}

// SetDeviceScaleFactor updates the scale used for screen point
// translation. Non-positive values reset to 1.
func (s *Store) SetDeviceScaleFactor(scale float64) {
	if scale <= 0 {
		scale = 1.0
	}
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()
}

// ScreenInfo returns the virtual screen parameters.
func (s *Store) ScreenInfo() ScreenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ScreenInfo{
		Width:             s.front.width,
		Height:            s.front.height,
		DeviceScaleFactor: s.scale,
	}
}

// ScreenPoint converts view coordinates to physical screen coordinates
// by applying the device scale factor.
func (s *Store) ScreenPoint(x, y int) (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(float64(x) * s.scale), int(float64(y) * s.scale)
}

// Resize replaces both buffers with blank ones of the new size. The old
// frame content does not survive a resize.
func (s *Store) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.front.width && height == s.front.height {
		return
	}
	s.logger.Debug("frame store resized",
		zap.Int("width", width),
		zap.Int("height", height))
	s.front = newFrameBuffer(width, height)
	s.back = newFrameBuffer(width, height)
	s.dirty = nil
}

// OnPaint absorbs a paint callback. The buffer holds the complete frame
// in BGRA; dirty lists the regions that actually changed. A mismatch
// between the buffer size and width*height*4 drops the paint.
func (s *Store) OnPaint(buffer []byte, width, height int, dirty []DirtyRect) {
	if len(buffer) != width*height*bytesPerPixel {
		s.logger.Warn("paint buffer size mismatch, dropping frame",
			zap.Int("expected", width*height*bytesPerPixel),
			zap.Int("got", len(buffer)))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if width != s.back.width || height != s.back.height {
		s.front = newFrameBuffer(width, height)
		s.back = newFrameBuffer(width, height)
		s.dirty = nil
	}

	union := DirtyRect{}
	for _, r := range dirty {
		union = union.Union(r)
		if clipped := r.Clip(width, height); !clipped.IsEmpty() {
			s.dirty = append(s.dirty, clipped)
		}
	}
	union = union.Clip(width, height)
	if len(dirty) == 0 {
		s.dirty = append(s.dirty, FullRect(width, height))
	}

	fullFrame := len(dirty) == 0 ||
		(union.X == 0 && union.Y == 0 && union.Width == width && union.Height == height)

	if fullFrame {
		copy(s.back.data, buffer)
	} else {
		stride := width * bytesPerPixel
		rowBytes := union.Width * bytesPerPixel
		for row := union.Y; row < union.Y+union.Height; row++ {
			off := row*stride + union.X*bytesPerPixel
			copy(s.back.data[off:off+rowBytes], buffer[off:off+rowBytes])
		}
	}

	// Swap buffers, then bring the new back buffer up to date so the
	// next partial paint lands on current content.
	s.front, s.back = s.back, s.front
	copy(s.back.data, s.front.data)

	s.frameCount++
	s.paintPending = false
}

// Snapshot returns the current frame converted from BGRA to RGBA.
func (s *Store) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bgraToRGBA(s.front.data, s.front.width, s.front.height, 0, 0, s.front.width, s.front.height)
}

// Region returns a sub-rectangle of the current frame in RGBA. The
// region must lie fully inside the frame.
func (s *Store) Region(x, y, width, height int) (*image.RGBA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if width <= 0 || height <= 0 || x < 0 || y < 0 ||
		x+width > s.front.width || y+height > s.front.height {
		return nil, &ErrRegionOutOfBounds{
			X: x, Y: y, Width: width, Height: height,
			FrameWidth:  s.front.width,
			FrameHeight: s.front.height,
		}
	}
	return bgraToRGBA(s.front.data, s.front.width, s.front.height, x, y, width, height), nil
}

func bgraToRGBA(src []byte, frameWidth, frameHeight, x, y, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := frameWidth * bytesPerPixel
	for row := 0; row < height; row++ {
		srcOff := (y+row)*stride + x*bytesPerPixel
		dstOff := row * img.Stride
		for col := 0; col < width; col++ {
			so := srcOff + col*bytesPerPixel
			do := dstOff + col*bytesPerPixel
			img.Pix[do] = src[so+2]
			img.Pix[do+1] = src[so+1]
			img.Pix[do+2] = src[so]
			img.Pix[do+3] = src[so+3]
		}
	}
	return img
}
