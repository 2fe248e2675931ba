package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdpinput "github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/input"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/stealth"
	"github.com/kibrowser/ki-browser/internal/tabs"
)

// Chrome drives a real Chromium instance over the DevTools protocol.
type Chrome struct {
	cfg      config.BrowserConfig
	inputCfg input.Config
	bundle   *stealth.Bundle
	registry *tabs.Registry
	bus      *events.Bus
	logger   *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc

	mu   sync.RWMutex
	tabs map[uuid.UUID]*chromeTab
	open bool
}

// chromeTab owns one DevTools target.
type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
	synth  *input.Synthesizer
}

// cdpDispatcher delivers synthesized events as raw Input domain calls,
// so Chromium sees trusted events rather than script-generated ones.
type cdpDispatcher struct {
	ctx context.Context
}

func cdpModifiers(mods []input.Modifier) cdpinput.Modifier {
	var out cdpinput.Modifier
	for _, m := range mods {
		switch m {
		case input.ModAlt:
			out |= cdpinput.ModifierAlt
		case input.ModControl:
			out |= cdpinput.ModifierCtrl
		case input.ModMeta:
			out |= cdpinput.ModifierMeta
		case input.ModShift:
			out |= cdpinput.ModifierShift
		}
	}
	return out
}

func (d *cdpDispatcher) DispatchMouseEvent(ctx context.Context, eventType string, x, y float64, button input.MouseButton, clickCount int, modifiers []input.Modifier) error {
	params := cdpinput.DispatchMouseEvent(cdpinput.MouseType(eventType), x, y).
		WithModifiers(cdpModifiers(modifiers))
	if eventType != input.MouseMoved {
		params = params.
			WithButton(cdpinput.MouseButton(button.String())).
			WithClickCount(int64(clickCount))
	}
	return chromedp.Run(d.ctx, chromedp.ActionFunc(func(c context.Context) error {
		return params.Do(c)
	}))
}

func (d *cdpDispatcher) DispatchScrollEvent(ctx context.Context, x, y, deltaX, deltaY float64) error {
	params := cdpinput.DispatchMouseEvent(cdpinput.MouseWheel, x, y).
		WithDeltaX(deltaX).
		WithDeltaY(deltaY)
	return chromedp.Run(d.ctx, chromedp.ActionFunc(func(c context.Context) error {
		return params.Do(c)
	}))
}

func (d *cdpDispatcher) DispatchKeyEvent(ctx context.Context, eventType, key string, modifiers []input.Modifier) error {
	var params *cdpinput.DispatchKeyEventParams
	if eventType == input.KeyChar {
		params = cdpinput.DispatchKeyEvent(cdpinput.KeyChar).WithText(key)
	} else {
		params = cdpinput.DispatchKeyEvent(cdpinput.KeyType(eventType)).WithKey(key)
	}
	params = params.WithModifiers(cdpModifiers(modifiers))
	return chromedp.Run(d.ctx, chromedp.ActionFunc(func(c context.Context) error {
		return params.Do(c)
	}))
}

// NewChrome builds a Chromium-backed engine. The browser process is
// launched by Start.
func NewChrome(cfg *config.Config, bundle *stealth.Bundle, bus *events.Bus, logger *zap.Logger) *Chrome {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chrome{
		cfg:      cfg.Browser,
		inputCfg: InputSettings(cfg.Input),
		bundle:   bundle,
		registry: tabs.NewRegistryWithLimit(cfg.Browser.MaxTabs),
		bus:      bus,
		logger:   logger.Named("chrome-engine"),
		tabs:     make(map[uuid.UUID]*chromeTab),
	}
}

func (e *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(e.cfg.WindowWidth, e.cfg.WindowHeight),
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if e.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.cfg.UserAgent))
	} else if e.bundle != nil {
		opts = append(opts, chromedp.UserAgent(e.bundle.Fingerprint.UserAgent))
	}
	if e.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(e.cfg.Proxy))
	}
	if e.cfg.ProfilePath != "" {
		opts = append(opts, chromedp.UserDataDir(e.cfg.ProfilePath))
	}
	if e.cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range e.cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// Start launches the browser process.
func (e *Chrome) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return nil
	}

	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
	e.rootCtx, e.rootCancel = chromedp.NewContext(e.allocCtx)

	// Starting the first target also starts the browser process.
	if err := chromedp.Run(e.rootCtx); err != nil {
		e.rootCancel()
		e.allocCancel()
		return fmt.Errorf("launching browser: %w", err)
	}

	e.open = true
	e.logger.Info("browser started",
		zap.Bool("headless", e.cfg.Headless),
		zap.Int("window_width", e.cfg.WindowWidth),
		zap.Int("window_height", e.cfg.WindowHeight))
	return nil
}

// Shutdown tears down all targets and the browser process.
func (e *Chrome) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return nil
	}

	for id, tab := range e.tabs {
		tab.cancel()
		delete(e.tabs, id)
	}
	e.registry.CloseAll()
	if e.rootCancel != nil {
		e.rootCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	e.open = false
	e.logger.Info("browser stopped")
	return nil
}

func (e *Chrome) Registry() *tabs.Registry { return e.registry }

func (e *Chrome) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open
}

func (e *Chrome) tab(tabID string) (*chromeTab, uuid.UUID, error) {
	id, err := uuid.Parse(tabID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid tab id %q", tabID)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tabs[id]
	if !ok {
		return nil, uuid.Nil, &tabs.ErrTabNotFound{ID: id}
	}
	return t, id, nil
}

func (e *Chrome) commandTimeout() time.Duration {
	if e.cfg.DefaultTimeoutMs > 0 {
		return time.Duration(e.cfg.DefaultTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

func (e *Chrome) run(t *chromeTab, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(t.ctx, e.commandTimeout())
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (e *Chrome) publish(ev schemas.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// watchTarget mirrors DevTools page events onto the event bus.
func (e *Chrome) watchTarget(ctx context.Context, id uuid.UUID) {
	tabID := id.String()
	chromedp.ListenTarget(ctx, func(ev any) {
		switch v := ev.(type) {
		case *page.EventFrameNavigated:
			if v.Frame.ParentID != "" {
				return
			}
			e.registry.Update(id, func(t *tabs.Tab) { t.URL = v.Frame.URL })
			e.publish(schemas.NewURLChangedEvent(tabID, v.Frame.URL))
		case *page.EventDomContentEventFired:
			e.publish(schemas.NewDomReadyEvent(tabID))
		case *page.EventLoadEventFired:
			var url, title string
			e.registry.Update(id, func(t *tabs.Tab) {
				t.SetReady()
				url, title = t.URL, t.Title
			})
			e.publish(schemas.NewLoadCompleteEvent(tabID, url))
			e.publish(schemas.NewNavigationCompleteEvent(tabID, url, title))
			e.publish(schemas.NewLoadingStateChangedEvent(tabID, false))
		case *runtime.EventConsoleAPICalled:
			msg := ""
			if len(v.Args) > 0 && v.Args[0].Value != nil {
				msg = string(v.Args[0].Value)
			}
			e.publish(schemas.NewConsoleMessageEvent(tabID, string(v.Type), msg))
		}
	})
}

// Execute runs one command against the live browser.
func (e *Chrome) Execute(ctx context.Context, cmd ipc.Command) ipc.Response {
	e.mu.RLock()
	open := e.open
	e.mu.RUnlock()
	if !open {
		return ipc.Fail("engine is not running")
	}

	switch c := cmd.(type) {
	case ipc.CreateTab:
		return e.createTab(c)
	case ipc.CloseTab:
		return e.closeTab(c)
	case ipc.Navigate:
		return e.navigate(c)
	case ipc.GoBack:
		return e.history(c.Tab(), chromedp.NavigateBack())
	case ipc.GoForward:
		return e.history(c.Tab(), chromedp.NavigateForward())
	case ipc.Reload:
		return e.reload(c)
	case ipc.Stop:
		return e.simple(c.Tab(), chromedp.Stop())
	case ipc.ClickCoordinates:
		return e.clickCoordinates(ctx, c)
	case ipc.ClickElement:
		return e.clickElement(ctx, c)
	case ipc.TypeText:
		return e.typeText(ctx, c)
	case ipc.PressKey:
		return e.pressKey(ctx, c)
	case ipc.EvaluateScript:
		return e.evaluateScript(c)
	case ipc.CaptureScreenshot:
		return e.captureScreenshot(c)
	case ipc.Scroll:
		return e.scroll(ctx, c)
	case ipc.FindElement:
		return e.findElement(c)
	case ipc.FindElements:
		return e.findElements(c)
	case ipc.WaitForElement:
		return e.waitForElement(c)
	case ipc.WaitForNavigation:
		return e.simple(c.Tab(), chromedp.WaitReady("body"))
	case ipc.GetAttribute:
		return e.getAttribute(c)
	case ipc.SetAttribute:
		return e.simple(c.Tab(), chromedp.SetAttributeValue(c.Selector, c.Attribute, c.Value))
	case ipc.GetText:
		return e.getText(c)
	case ipc.GetValue:
		return e.getValue(c)
	case ipc.SetValue:
		return e.simple(c.Tab(), chromedp.SetValue(c.Selector, c.Value))
	case ipc.Focus:
		return e.simple(c.Tab(), chromedp.Focus(c.Selector))
	case ipc.Blur:
		return e.simple(c.Tab(), chromedp.Blur(c.Selector))
	case ipc.Select:
		return e.selectOption(c)
	case ipc.SetChecked:
		return e.setChecked(c)
	case ipc.GetURL:
		return e.getURL(c)
	case ipc.GetTitle:
		return e.getTitle(c)
	case ipc.GetHTML:
		return e.getHTML(c)
	case ipc.GetTabs:
		return e.getTabs()
	case ipc.GetActiveTab:
		return e.getActiveTab()
	case ipc.SetActiveTab:
		return e.setActiveTab(c)
	case ipc.SetViewport:
		return e.setViewport(c)
	case ipc.SetUserAgent:
		return e.setUserAgent(c)
	case ipc.SetJavaScriptEnabled:
		return e.setJavaScriptEnabled(c)
	case ipc.Shutdown:
		_ = e.Shutdown(ctx)
		return ipc.OK()
	default:
		return ipc.Fail(fmt.Sprintf("unsupported command %s", cmd.Name()))
	}
}

func (e *Chrome) createTab(c ipc.CreateTab) ipc.Response {
	tab, err := e.registry.Open(c.URL)
	if err != nil {
		return ipc.Fail(err.Error())
	}

	tctx, tcancel := chromedp.NewContext(e.rootCtx)
	disp := &cdpDispatcher{ctx: tctx}
	synth := input.NewSynthesizer(e.inputCfg, disp, e.logger)
	synth.SetBounds(&input.Bounds{
		Width:  float64(e.cfg.WindowWidth),
		Height: float64(e.cfg.WindowHeight),
	})

	actions := []chromedp.Action{}
	if e.bundle != nil {
		script := e.bundle.InjectionScript()
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	actions = append(actions, chromedp.Navigate(c.URL))

	ctx, cancel := context.WithTimeout(tctx, e.commandTimeout())
	defer cancel()
	if err := chromedp.Run(ctx, actions...); err != nil {
		tcancel()
		_, _ = e.registry.Close(tab.ID)
		return ipc.Fail(fmt.Sprintf("opening %s: %v", c.URL, err))
	}

	e.watchTarget(tctx, tab.ID)

	e.mu.Lock()
	e.tabs[tab.ID] = &chromeTab{ctx: tctx, cancel: tcancel, synth: synth}
	e.mu.Unlock()

	if c.Active {
		_ = e.registry.SetActive(tab.ID)
	}
	e.syncTabState(tab.ID)
	e.publish(schemas.NewTabCreatedEvent(tab.ID.String(), c.URL))
	return ipc.OKTab(tab.ID.String())
}

// syncTabState pulls URL, title and history depth from the target into
// the registry.
func (e *Chrome) syncTabState(id uuid.UUID) {
	t, _, err := e.tab(id.String())
	if err != nil {
		return
	}

	var url, title string
	var canBack, canForward bool
	err = e.run(t,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			curr, entries, err := page.GetNavigationHistory().Do(ctx)
			if err != nil {
				return err
			}
			canBack = curr > 0
			canForward = int(curr) < len(entries)-1
			return nil
		}),
	)
	if err != nil {
		e.logger.Warn("tab state sync failed", zap.String("tab_id", id.String()), zap.Error(err))
		return
	}

	e.registry.Update(id, func(tab *tabs.Tab) {
		tab.URL = url
		tab.SetTitle(title)
		tab.SetReady()
		tab.CanGoBack = canBack
		tab.CanGoForward = canForward
	})
	e.publish(schemas.NewTitleChangedEvent(id.String(), title))
}

func (e *Chrome) closeTab(c ipc.CloseTab) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	t.cancel()
	if _, err := e.registry.Close(id); err != nil {
		return ipc.Fail(err.Error())
	}
	e.mu.Lock()
	delete(e.tabs, id)
	e.mu.Unlock()

	e.publish(schemas.NewTabClosedEvent(id.String()))
	if active := e.registry.ActiveID(); active != uuid.Nil {
		e.publish(schemas.NewActiveTabChangedEvent(active.String()))
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) navigate(c ipc.Navigate) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	e.registry.Update(id, func(tab *tabs.Tab) { tab.Navigate(c.URL) })
	e.publish(schemas.NewLoadingStateChangedEvent(id.String(), true))

	if err := e.run(t, chromedp.Navigate(c.URL)); err != nil {
		e.registry.Update(id, func(tab *tabs.Tab) { tab.SetError(err.Error()) })
		tabID := id.String()
		e.publish(schemas.NewErrorEvent(&tabID, "navigation_failed", err.Error()))
		return ipc.Fail(err.Error())
	}
	e.syncTabState(id)
	return ipc.OKTab(id.String())
}

func (e *Chrome) history(tabID string, action chromedp.Action) ipc.Response {
	t, id, err := e.tab(tabID)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}
	e.syncTabState(id)
	return ipc.OKTab(id.String())
}

func (e *Chrome) reload(c ipc.Reload) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return page.Reload().WithIgnoreCache(c.IgnoreCache).Do(ctx)
	})
	if err := e.run(t, action, chromedp.WaitReady("body")); err != nil {
		return ipc.Fail(err.Error())
	}
	e.syncTabState(id)
	return ipc.OKTab(id.String())
}

func (e *Chrome) simple(tabID string, actions ...chromedp.Action) ipc.Response {
	t, id, err := e.tab(tabID)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := e.run(t, actions...); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) clickCoordinates(ctx context.Context, c ipc.ClickCoordinates) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	button, err := input.ParseButton(c.Button)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	mods, err := input.ParseModifiers(c.Modifiers)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	target := input.Point{X: float64(c.X), Y: float64(c.Y)}
	if err := t.synth.Click(ctx, target, button, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

// elementCenter resolves a selector to viewport coordinates via
// getBoundingClientRect, so synthesized pointer paths land on the real
// layout box.
func (e *Chrome) elementCenter(t *chromeTab, selector string) (input.Point, error) {
	var box struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, selector)
	if err := e.run(t, chromedp.Evaluate(expr, &box)); err != nil {
		return input.Point{}, fmt.Errorf("no element matches %q", selector)
	}
	if box.Width == 0 && box.Height == 0 {
		return input.Point{}, fmt.Errorf("element %q has no layout box", selector)
	}
	return input.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}, nil
}

func (e *Chrome) clickElement(ctx context.Context, c ipc.ClickElement) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	center, err := e.elementCenter(t, c.Selector)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	button, err := input.ParseButton(c.Button)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	mods, err := input.ParseModifiers(c.Modifiers)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := t.synth.Click(ctx, center, button, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) typeText(ctx context.Context, c ipc.TypeText) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if c.Selector != "" {
		actions := []chromedp.Action{chromedp.Focus(c.Selector)}
		if c.ClearFirst {
			actions = append(actions, chromedp.SetValue(c.Selector, ""))
		}
		if err := e.run(t, actions...); err != nil {
			return ipc.Fail(err.Error())
		}
	}
	if err := t.synth.TypeText(ctx, c.Text); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) pressKey(ctx context.Context, c ipc.PressKey) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	mods, err := input.ParseModifiers(c.Modifiers)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := t.synth.PressKey(ctx, c.Key, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) evaluateScript(c ipc.EvaluateScript) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var result json.RawMessage
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		params := runtime.Evaluate(c.Script).WithReturnByValue(true)
		if c.AwaitPromise {
			params = params.WithAwaitPromise(true)
		}
		remote, exc, err := params.Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if remote != nil {
			result = json.RawMessage(remote.Value)
		}
		return nil
	})
	if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	return ipc.OKData(schemas.EvaluateResponse{Result: result})
}

func (e *Chrome) captureScreenshot(c ipc.CaptureScreenshot) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	format := page.CaptureScreenshotFormatPng
	switch c.Format {
	case "jpeg", "jpg":
		format = page.CaptureScreenshotFormatJpeg
	case "webp":
		format = page.CaptureScreenshotFormatWebp
	}
	quality := int64(c.Quality)
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var clip *page.Viewport
	if c.Selector != "" {
		var box struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		}
		expr := fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return null;
			const r = el.getBoundingClientRect();
			return {x: r.x, y: r.y, width: r.width, height: r.height};
		})()`, c.Selector)
		if err := e.run(t, chromedp.Evaluate(expr, &box)); err != nil || box.Width == 0 {
			return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
		}
		clip = &page.Viewport{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height, Scale: 1}
	}

	var data []byte
	var width, height int
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot().WithFormat(format)
		if format != page.CaptureScreenshotFormatPng {
			params = params.WithQuality(quality)
		}
		if clip != nil {
			params = params.WithClip(clip)
			width, height = int(clip.Width), int(clip.Height)
		} else {
			_, _, contentSize, _, _, _, err := page.GetLayoutMetrics().Do(ctx)
			if err == nil && contentSize != nil {
				width = int(contentSize.Width)
				height = int(contentSize.Height)
			}
		}
		var err error
		data, err = params.Do(ctx)
		return err
	})
	if c.FullPage {
		var buf []byte
		if err := e.run(t, chromedp.FullScreenshot(&buf, int(quality))); err != nil {
			return ipc.Fail(err.Error())
		}
		data = buf
	} else if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}

	return ipc.OKData(schemas.ScreenshotResponse{
		Data:   base64.StdEncoding.EncodeToString(data),
		Format: string(format),
		Width:  width,
		Height: height,
	})
}

func (e *Chrome) scroll(ctx context.Context, c ipc.Scroll) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	var anchor *input.Point
	if c.X != nil && c.Y != nil {
		anchor = &input.Point{X: float64(*c.X), Y: float64(*c.Y)}
	} else if c.Selector != "" {
		if center, err := e.elementCenter(t, c.Selector); err == nil {
			anchor = &center
		}
	}
	if err := t.synth.Scroll(ctx, anchor, float64(c.DeltaX), float64(c.DeltaY)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) elementInfo(t *chromeTab, selector string) (schemas.ElementInfo, error) {
	var raw struct {
		Found       bool                 `json:"found"`
		TagName     string               `json:"tag_name"`
		TextContent string               `json:"text_content"`
		Attributes  map[string]string    `json:"attributes"`
		Box         *schemas.BoundingBox `json:"box"`
		Visible     bool                 `json:"visible"`
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return {found: false};
		const r = el.getBoundingClientRect();
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		const style = getComputedStyle(el);
		return {
			found: true,
			tag_name: el.tagName.toLowerCase(),
			text_content: (el.textContent || '').trim(),
			attributes: attrs,
			box: {x: r.x, y: r.y, width: r.width, height: r.height},
			visible: style.display !== 'none' && style.visibility !== 'hidden' && r.width > 0 && r.height > 0,
		};
	})()`, selector)
	if err := e.run(t, chromedp.Evaluate(expr, &raw)); err != nil {
		return schemas.ElementInfo{}, err
	}
	if !raw.Found {
		return schemas.ElementInfo{Found: false}, nil
	}
	visible := raw.Visible
	return schemas.ElementInfo{
		Found:       true,
		TagName:     raw.TagName,
		TextContent: raw.TextContent,
		Attributes:  raw.Attributes,
		BoundingBox: raw.Box,
		IsVisible:   &visible,
	}, nil
}

func (e *Chrome) findElement(c ipc.FindElement) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	info, err := e.elementInfo(t, c.Selector)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(info)
}

func (e *Chrome) findElements(c ipc.FindElements) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var infos []schemas.ElementInfo
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(el => {
		const r = el.getBoundingClientRect();
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		return {
			found: true,
			tag_name: el.tagName.toLowerCase(),
			text_content: (el.textContent || '').trim(),
			attributes: attrs,
			bounding_box: {x: r.x, y: r.y, width: r.width, height: r.height},
		};
	})`, c.Selector)
	if err := e.run(t, chromedp.Evaluate(expr, &infos)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(infos)
}

func (e *Chrome) waitForElement(c ipc.WaitForElement) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = e.commandTimeout()
	}
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	action := chromedp.WaitReady(c.Selector)
	if c.Visible {
		action = chromedp.WaitVisible(c.Selector)
	}
	if err := chromedp.Run(ctx, action); err != nil {
		return ipc.Fail(fmt.Sprintf("element %q did not appear within %s", c.Selector, timeout))
	}
	info, err := e.elementInfo(t, c.Selector)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(info)
}

func (e *Chrome) getAttribute(c ipc.GetAttribute) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var value string
	var ok bool
	if err := e.run(t, chromedp.AttributeValue(c.Selector, c.Attribute, &value, &ok)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"value": value})
}

func (e *Chrome) getText(c ipc.GetText) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var text string
	if err := e.run(t, chromedp.Text(c.Selector, &text)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"text": text})
}

func (e *Chrome) getValue(c ipc.GetValue) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var value string
	if err := e.run(t, chromedp.Value(c.Selector, &value)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"value": value})
}

func (e *Chrome) selectOption(c ipc.Select) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	var expr string
	switch {
	case c.Value != nil:
		expr = fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			el.value = %q;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})()`, c.Selector, *c.Value)
	case c.Label != nil:
		expr = fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			const opt = Array.from(el.options).find(o => o.label.trim() === %q);
			if (!opt) return false;
			el.value = opt.value;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})()`, c.Selector, *c.Label)
	case c.Index != nil:
		expr = fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el || %d >= el.options.length) return false;
			el.selectedIndex = %d;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})()`, c.Selector, *c.Index, *c.Index)
	default:
		return ipc.Fail("select needs a value, label, or index")
	}

	var matched bool
	if err := e.run(t, chromedp.Evaluate(expr, &matched)); err != nil {
		return ipc.Fail(err.Error())
	}
	if !matched {
		return ipc.Fail("no matching option")
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) setChecked(c ipc.SetChecked) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.checked = %t;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, c.Selector, c.Checked)
	var matched bool
	if err := e.run(t, chromedp.Evaluate(expr, &matched)); err != nil {
		return ipc.Fail(err.Error())
	}
	if !matched {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) getURL(c ipc.GetURL) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var url string
	if err := e.run(t, chromedp.Location(&url)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"url": url})
}

func (e *Chrome) getTitle(c ipc.GetTitle) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var title string
	if err := e.run(t, chromedp.Title(&title)); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"title": title})
}

func (e *Chrome) getHTML(c ipc.GetHTML) ipc.Response {
	t, _, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	selector := c.Selector
	if selector == "" {
		selector = "html"
	}
	var html string
	action := chromedp.InnerHTML(selector, &html)
	if c.Outer || c.Selector == "" {
		action = chromedp.OuterHTML(selector, &html)
	}
	if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"html": html})
}

func (e *Chrome) tabInfo(t tabs.Tab) schemas.TabInfo {
	return schemas.TabInfo{
		ID:           t.ID.String(),
		URL:          t.URL,
		Title:        t.Title,
		IsLoading:    t.Status == tabs.StatusLoading,
		IsActive:     t.IsActive,
		CanGoBack:    t.CanGoBack,
		CanGoForward: t.CanGoForward,
	}
}

func (e *Chrome) getTabs() ipc.Response {
	all := e.registry.ByAge()
	infos := make([]schemas.TabInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, e.tabInfo(t))
	}
	activeID := ""
	if id := e.registry.ActiveID(); id != uuid.Nil {
		activeID = id.String()
	}
	return ipc.OKData(schemas.TabsResponse{Tabs: infos, ActiveTabID: activeID})
}

func (e *Chrome) getActiveTab() ipc.Response {
	tab, ok := e.registry.Active()
	if !ok {
		return ipc.Fail("no active tab")
	}
	return ipc.OKData(e.tabInfo(tab))
}

func (e *Chrome) setActiveTab(c ipc.SetActiveTab) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := e.registry.SetActive(id); err != nil {
		return ipc.Fail(err.Error())
	}
	// Raise the target so the user-visible window follows.
	_ = e.run(t, chromedp.ActionFunc(func(ctx context.Context) error {
		tgt := chromedp.FromContext(ctx).Target
		if tgt == nil {
			return nil
		}
		return page.BringToFront().Do(cdp.WithExecutor(ctx, tgt))
	}))
	e.publish(schemas.NewActiveTabChangedEvent(id.String()))
	return ipc.OKTab(id.String())
}

func (e *Chrome) setViewport(c ipc.SetViewport) ipc.Response {
	if c.Width <= 0 || c.Height <= 0 {
		return ipc.Fail("viewport dimensions must be positive")
	}
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := e.run(t, chromedp.EmulateViewport(int64(c.Width), int64(c.Height))); err != nil {
		return ipc.Fail(err.Error())
	}
	t.synth.SetBounds(&input.Bounds{Width: float64(c.Width), Height: float64(c.Height)})
	return ipc.OKTab(id.String())
}

func (e *Chrome) setUserAgent(c ipc.SetUserAgent) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(c.UserAgent).Do(ctx)
	})
	if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (e *Chrome) setJavaScriptEnabled(c ipc.SetJavaScriptEnabled) ipc.Response {
	t, id, err := e.tab(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetScriptExecutionDisabled(!c.Enabled).Do(ctx)
	})
	if err := e.run(t, action); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}
