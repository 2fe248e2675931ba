package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bgraFrame builds a width*height BGRA buffer filled with one color.
func bgraFrame(width, height int, b, g, r, a byte) []byte {
	buf := make([]byte, width*height*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i] = b
		buf[i+1] = g
		buf[i+2] = r
		buf[i+3] = a
	}
	return buf
}

func TestDirtyRectUnion(t *testing.T) {
	a := DirtyRect{X: 0, Y: 0, Width: 10, Height: 10}
	b := DirtyRect{X: 20, Y: 5, Width: 10, Height: 20}

	u := a.Union(b)
	assert.Equal(t, DirtyRect{X: 0, Y: 0, Width: 30, Height: 25}, u)

	assert.Equal(t, a, a.Union(DirtyRect{}))
	assert.Equal(t, a, DirtyRect{}.Union(a))
}

func TestDirtyRectIntersects(t *testing.T) {
	a := DirtyRect{X: 0, Y: 0, Width: 10, Height: 10}

	assert.True(t, a.Intersects(DirtyRect{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.False(t, a.Intersects(DirtyRect{X: 10, Y: 0, Width: 5, Height: 5}))
	assert.False(t, a.Intersects(DirtyRect{X: 0, Y: 20, Width: 5, Height: 5}))
}

func TestDirtyRectClip(t *testing.T) {
	r := DirtyRect{X: -5, Y: -5, Width: 20, Height: 20}
	assert.Equal(t, DirtyRect{X: 0, Y: 0, Width: 15, Height: 15}, r.Clip(100, 100))

	outside := DirtyRect{X: 200, Y: 200, Width: 10, Height: 10}
	assert.True(t, outside.Clip(100, 100).IsEmpty())
}

func TestFullPaintReplacesFrame(t *testing.T) {
	store := NewStore(4, 4, nil)

	store.OnPaint(bgraFrame(4, 4, 255, 0, 0, 255), 4, 4, nil)

	require.Equal(t, uint64(1), store.FrameCount())
	img := store.Snapshot()

	// BGRA blue converts to RGBA with blue in the third channel.
	assert.Equal(t, byte(0), img.Pix[0])
	assert.Equal(t, byte(0), img.Pix[1])
	assert.Equal(t, byte(255), img.Pix[2])
	assert.Equal(t, byte(255), img.Pix[3])
}

func TestPartialPaintUpdatesOnlyDirtyRegion(t *testing.T) {
	store := NewStore(4, 4, nil)
	store.OnPaint(bgraFrame(4, 4, 0, 0, 255, 255), 4, 4, nil)

	// New buffer is all green but only the top-left 2x2 is dirty.
	store.OnPaint(bgraFrame(4, 4, 0, 255, 0, 255), 4, 4, []DirtyRect{{X: 0, Y: 0, Width: 2, Height: 2}})

	img := store.Snapshot()

	// Inside the dirty rect: green.
	assert.Equal(t, byte(0), img.Pix[0])
	assert.Equal(t, byte(255), img.Pix[1])

	// Outside the dirty rect (pixel 3,3): still red.
	off := 3*img.Stride + 3*4
	assert.Equal(t, byte(255), img.Pix[off])
	assert.Equal(t, byte(0), img.Pix[off+1])

	assert.Equal(t, uint64(2), store.FrameCount())
}

func TestPaintWithMismatchedBufferIsDropped(t *testing.T) {
	store := NewStore(4, 4, nil)
	store.OnPaint(make([]byte, 10), 4, 4, nil)

	assert.Equal(t, uint64(0), store.FrameCount())
}

func TestPaintResizesOnDimensionChange(t *testing.T) {
	store := NewStore(4, 4, nil)
	store.OnPaint(bgraFrame(8, 2, 1, 2, 3, 255), 8, 2, nil)

	w, h := store.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 2, h)
}

func TestPaintAccumulatesDirtyRects(t *testing.T) {
	store := NewStore(8, 8, nil)

	// A full paint without rects records the whole frame as dirty.
	store.OnPaint(bgraFrame(8, 8, 0, 0, 0, 255), 8, 8, nil)
	// Partial paints record their clipped regions.
	store.OnPaint(bgraFrame(8, 8, 1, 2, 3, 255), 8, 8, []DirtyRect{
		{X: 1, Y: 1, Width: 2, Height: 2},
		{X: 4, Y: 4, Width: 10, Height: 10},
	})

	rects := store.DirtyRects()
	require.Len(t, rects, 3)
	assert.Equal(t, FullRect(8, 8), rects[0])
	assert.Equal(t, DirtyRect{X: 1, Y: 1, Width: 2, Height: 2}, rects[1])
	assert.Equal(t, DirtyRect{X: 4, Y: 4, Width: 4, Height: 4}, rects[2])

	// Take hands the list over and resets the accumulator.
	taken := store.TakeDirtyRects()
	assert.Len(t, taken, 3)
	assert.Empty(t, store.DirtyRects())
}

func TestResizeClearsDirtyRects(t *testing.T) {
	store := NewStore(4, 4, nil)
	store.OnPaint(bgraFrame(4, 4, 0, 0, 0, 255), 4, 4, nil)
	require.NotEmpty(t, store.DirtyRects())

	store.Resize(6, 6)
	assert.Empty(t, store.DirtyRects())
}

func TestPaintPendingFlag(t *testing.T) {
	store := NewStore(2, 2, nil)

	store.MarkPaintPending()
	assert.True(t, store.PaintPending())

	store.OnPaint(bgraFrame(2, 2, 0, 0, 0, 255), 2, 2, nil)
	assert.False(t, store.PaintPending())
}

func TestRegionBoundsChecking(t *testing.T) {
	store := NewStore(4, 4, nil)

	_, err := store.Region(2, 2, 4, 4)
	var oob *ErrRegionOutOfBounds
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 4, oob.FrameWidth)

	img, err := store.Region(1, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestScreenPointAppliesScale(t *testing.T) {
	store := NewStore(100, 100, nil)
	store.SetDeviceScaleFactor(2.0)

	x, y := store.ScreenPoint(10, 20)
	assert.Equal(t, 20, x)
	assert.Equal(t, 40, y)

	info := store.ScreenInfo()
	assert.Equal(t, 2.0, info.DeviceScaleFactor)
	assert.Equal(t, 100, info.Width)
}

func TestCapturePNG(t *testing.T) {
	store := NewStore(3, 3, nil)
	store.OnPaint(bgraFrame(3, 3, 10, 20, 30, 255), 3, 3, nil)

	shot, err := Capture(store, FormatPNG, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, shot.Format)
	assert.Equal(t, 3, shot.Width)

	decoded, err := png.Decode(bytes.NewReader(shot.Data))
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Bounds().Dx())
	assert.NotEmpty(t, shot.Base64())
}

func TestCaptureWebPFallsBackToPNG(t *testing.T) {
	store := NewStore(2, 2, nil)
	store.OnPaint(bgraFrame(2, 2, 0, 0, 0, 255), 2, 2, nil)

	shot, err := Capture(store, FormatWebP, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, shot.Format)
}

func TestCaptureJPEG(t *testing.T) {
	store := NewStore(2, 2, nil)
	store.OnPaint(bgraFrame(2, 2, 50, 60, 70, 255), 2, 2, nil)

	shot, err := Capture(store, FormatJPEG, 90, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, shot.Format)
	assert.NotEmpty(t, shot.Data)
}

func TestCaptureRegionOutOfBounds(t *testing.T) {
	store := NewStore(2, 2, nil)

	_, err := CaptureRegion(store, 0, 0, 5, 5, FormatPNG, 0, nil)
	var oob *ErrRegionOutOfBounds
	assert.ErrorAs(t, err, &oob)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJPEG, ParseFormat("JPG"))
	assert.Equal(t, FormatWebP, ParseFormat("webp"))
	assert.Equal(t, FormatPNG, ParseFormat(""))
	assert.Equal(t, FormatPNG, ParseFormat("bmp"))
}
