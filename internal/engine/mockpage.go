package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/input"
	"github.com/kibrowser/ki-browser/internal/render"
	"github.com/kibrowser/ki-browser/internal/stealth"
)

// mockPage is one synthetic tab: a generated document, a scripting
// runtime and an off-screen frame the page "paints" into.
type mockPage struct {
	mu sync.Mutex

	url   string
	title string
	html  string
	doc   *goquery.Document
	vm    *goja.Runtime

	history    []string
	historyIdx int

	frames    *render.Store
	synth     *input.Synthesizer
	events    *recordingDispatcher
	jsEnabled bool
	userAgent string
	scrollX   float64
	scrollY   float64

	scriptTimeout time.Duration
	logger        *zap.Logger
}

// recordingDispatcher absorbs synthesized input events. The mock has no
// real compositor, so events are counted rather than delivered.
type recordingDispatcher struct {
	mu          sync.Mutex
	mouseEvents int
	keyEvents   int
	scrollX     float64
	scrollY     float64
}

func (d *recordingDispatcher) DispatchMouseEvent(_ context.Context, _ string, _, _ float64, _ input.MouseButton, _ int, _ []input.Modifier) error {
	d.mu.Lock()
	d.mouseEvents++
	d.mu.Unlock()
	return nil
}

func (d *recordingDispatcher) DispatchScrollEvent(_ context.Context, _, _, deltaX, deltaY float64) error {
	d.mu.Lock()
	d.scrollX += deltaX
	d.scrollY += deltaY
	d.mu.Unlock()
	return nil
}

func (d *recordingDispatcher) DispatchKeyEvent(_ context.Context, _ string, _ string, _ []input.Modifier) error {
	d.mu.Lock()
	d.keyEvents++
	d.mu.Unlock()
	return nil
}

func newMockPage(target string, width, height int, inputCfg input.Config, bundle *stealth.Bundle, timeout time.Duration, logger *zap.Logger) (*mockPage, error) {
	disp := &recordingDispatcher{}
	synth := input.NewSynthesizer(inputCfg, disp, logger)
	synth.SetBounds(&input.Bounds{Width: float64(width), Height: float64(height)})

	p := &mockPage{
		frames:        render.NewStore(width, height, logger),
		synth:         synth,
		events:        disp,
		jsEnabled:     true,
		scriptTimeout: timeout,
		logger:        logger,
	}
	p.vm = goja.New()
	p.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if bundle != nil {
		p.applyStealth(bundle)
		p.userAgent = bundle.Fingerprint.UserAgent
	}
	if err := p.load(target); err != nil {
		return nil, err
	}
	return p, nil
}

// applyStealth exposes the spoofed identity inside the scripting
// runtime so evaluated scripts observe the same navigator a real
// injected page would.
func (p *mockPage) applyStealth(bundle *stealth.Bundle) {
	nav := bundle.Navigator
	nav.EnsureNoWebdriver()

	navigator := p.vm.NewObject()
	_ = navigator.Set("webdriver", false)
	_ = navigator.Set("userAgent", nav.UserAgent)
	_ = navigator.Set("platform", nav.Platform)
	_ = navigator.Set("vendor", nav.Vendor)
	_ = navigator.Set("language", nav.Languages[0])
	_ = navigator.Set("languages", nav.Languages)
	_ = navigator.Set("hardwareConcurrency", nav.HardwareConcurrency)
	_ = navigator.Set("deviceMemory", nav.DeviceMemory)
	_ = navigator.Set("maxTouchPoints", nav.MaxTouchPoints)
	_ = navigator.Set("appName", nav.AppName)
	_ = navigator.Set("appCodeName", nav.AppCodeName)
	_ = navigator.Set("product", nav.Product)
	_ = navigator.Set("productSub", nav.ProductSub)
	_ = navigator.Set("cookieEnabled", nav.CookieEnabled)
	_ = navigator.Set("onLine", nav.OnLine)
	_ = p.vm.Set("navigator", navigator)

	screen := p.vm.NewObject()
	res := bundle.Fingerprint.ScreenResolution
	_ = screen.Set("width", res.Width)
	_ = screen.Set("height", res.Height)
	_ = screen.Set("availWidth", res.AvailWidth)
	_ = screen.Set("availHeight", res.AvailHeight)
	_ = screen.Set("colorDepth", bundle.Fingerprint.ColorDepth)
	_ = screen.Set("pixelDepth", bundle.Fingerprint.PixelDepth)
	_ = p.vm.Set("screen", screen)
}

// load replaces the document with a synthetic page for the URL and
// paints a frame derived from it.
func (p *mockPage) load(target string) error {
	html := syntheticHTML(target)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("building document for %s: %w", target, err)
	}

	p.url = target
	p.html = html
	p.doc = doc
	p.title = pageTitle(target)
	p.scrollX = 0
	p.scrollY = 0
	p.syncRuntimeGlobals()
	p.paint()
	return nil
}

func (p *mockPage) syncRuntimeGlobals() {
	location := p.vm.NewObject()
	_ = location.Set("href", p.url)
	if u, err := url.Parse(p.url); err == nil {
		_ = location.Set("host", u.Host)
		_ = location.Set("protocol", u.Scheme+":")
		_ = location.Set("pathname", u.Path)
	}
	_ = p.vm.Set("location", location)

	document := p.vm.NewObject()
	_ = document.Set("title", p.title)
	_ = document.Set("URL", p.url)
	_ = p.vm.Set("document", document)
}

// paint fills the frame with a deterministic gradient seeded by the
// URL, standing in for a compositor.
func (p *mockPage) paint() {
	w, h := p.frames.Size()
	h32 := fnv.New32a()
	h32.Write([]byte(p.url))
	seed := h32.Sum32()

	buf := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			buf[off] = byte(seed>>16) + byte(x)
			buf[off+1] = byte(seed>>8) + byte(y)
			buf[off+2] = byte(seed) ^ byte(x+y)
			buf[off+3] = 255
		}
	}
	p.frames.OnPaint(buf, w, h, nil)
}

// navigate loads a new URL, truncating any forward history.
func (p *mockPage) navigate(target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(target); err != nil {
		return err
	}
	p.history = p.history[:p.historyIdx]
	p.history = append(p.history, target)
	p.historyIdx = len(p.history)
	return nil
}

func (p *mockPage) goBack() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyIdx <= 1 {
		return "", false
	}
	p.historyIdx--
	target := p.history[p.historyIdx-1]
	if err := p.load(target); err != nil {
		return "", false
	}
	return target, true
}

func (p *mockPage) goForward() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyIdx >= len(p.history) {
		return "", false
	}
	p.historyIdx++
	target := p.history[p.historyIdx-1]
	if err := p.load(target); err != nil {
		return "", false
	}
	return target, true
}

func (p *mockPage) reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(p.url)
}

func (p *mockPage) canGoBack() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.historyIdx > 1
}

func (p *mockPage) canGoForward() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.historyIdx < len(p.history)
}

// evaluate runs a script with an interrupt-based timeout so runaway
// code cannot wedge the engine.
func (p *mockPage) evaluate(ctx context.Context, script string) (goja.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.jsEnabled {
		return nil, fmt.Errorf("javascript is disabled for this tab")
	}

	timeout := p.scriptTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	timer := time.AfterFunc(timeout, func() {
		p.vm.Interrupt("script timeout")
	})
	defer func() {
		timer.Stop()
		p.vm.ClearInterrupt()
	}()

	value, err := p.vm.RunString(script)
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			return nil, fmt.Errorf("script exceeded %s", timeout)
		}
		return nil, err
	}
	return value, nil
}

// selection resolves a CSS selector against the document.
func (p *mockPage) selection(selector string) *goquery.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector)
}

// elementBox derives a deterministic on-screen rectangle for the nth
// matched element. The mock has no layout engine; positions are spread
// over the viewport so pointer paths stay meaningful.
func (p *mockPage) elementBox(selector string) (schemas.BoundingBox, bool) {
	sel := p.selection(selector)
	if sel.Length() == 0 {
		return schemas.BoundingBox{}, false
	}

	w, h := p.frames.Size()
	h32 := fnv.New32a()
	h32.Write([]byte(selector))
	seed := int(h32.Sum32())

	boxW, boxH := 120, 28
	x := 20 + seed%max(w-boxW-40, 1)
	y := 20 + (seed/7)%max(h-boxH-40, 1)
	return schemas.BoundingBox{
		X:      float64(x),
		Y:      float64(y),
		Width:  float64(boxW),
		Height: float64(boxH),
	}, true
}

func pageTitle(target string) string {
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return u.Host
	}
	return target
}

// syntheticHTML builds a small but real document for a URL so selector
// based operations have something to match.
func syntheticHTML(target string) string {
	title := pageTitle(target)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
  <h1 id="heading">%s</h1>
  <p class="description">Rendered view of %s</p>
  <form id="main-form" action="%s">
    <input id="query" name="q" type="text" value="" />
    <input id="agree" name="agree" type="checkbox" />
    <select id="lang" name="lang">
      <option value="en">English</option>
      <option value="de">German</option>
      <option value="fr">French</option>
    </select>
    <button id="submit" type="submit">Go</button>
  </form>
  <a id="next" href="%s/next">Next page</a>
</body>
</html>`, title, title, target, target, target)
}
