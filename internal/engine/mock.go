package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/input"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/render"
	"github.com/kibrowser/ki-browser/internal/stealth"
	"github.com/kibrowser/ki-browser/internal/tabs"
)

// Mock is an engine that renders synthetic pages entirely in process.
// It honors the full command surface so the API layer and tests run
// without a Chromium binary.
type Mock struct {
	cfg      config.BrowserConfig
	inputCfg input.Config
	bundle   *stealth.Bundle
	registry *tabs.Registry
	bus      *events.Bus
	logger   *zap.Logger

	mu    sync.RWMutex
	pages map[uuid.UUID]*mockPage
	open  bool
}

// NewMock builds a mock engine. The stealth bundle may be nil when
// fingerprint spoofing is disabled.
func NewMock(cfg *config.Config, bundle *stealth.Bundle, bus *events.Bus, logger *zap.Logger) *Mock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mock{
		cfg:      cfg.Browser,
		inputCfg: InputSettings(cfg.Input),
		bundle:   bundle,
		registry: tabs.NewRegistryWithLimit(cfg.Browser.MaxTabs),
		bus:      bus,
		logger:   logger.Named("mock-engine"),
		pages:    make(map[uuid.UUID]*mockPage),
	}
}

// Start marks the engine ready.
func (m *Mock) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.logger.Info("mock engine started",
		zap.Int("window_width", m.cfg.WindowWidth),
		zap.Int("window_height", m.cfg.WindowHeight))
	return nil
}

// Shutdown closes all tabs.
func (m *Mock) Shutdown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.pages = make(map[uuid.UUID]*mockPage)
	m.registry.CloseAll()
	m.logger.Info("mock engine stopped")
	return nil
}

// Registry exposes tab state.
func (m *Mock) Registry() *tabs.Registry { return m.registry }

func (m *Mock) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

func (m *Mock) page(tabID string) (*mockPage, uuid.UUID, error) {
	id, err := uuid.Parse(tabID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid tab id %q", tabID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	if !ok {
		return nil, uuid.Nil, &tabs.ErrTabNotFound{ID: id}
	}
	return p, id, nil
}

func (m *Mock) scriptTimeout() time.Duration {
	if m.cfg.DefaultTimeoutMs > 0 {
		return time.Duration(m.cfg.DefaultTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// Execute runs one command. Unknown commands fail rather than panic so
// a skewed client cannot take the engine down.
func (m *Mock) Execute(ctx context.Context, cmd ipc.Command) ipc.Response {
	m.mu.RLock()
	open := m.open
	m.mu.RUnlock()
	if !open {
		return ipc.Fail("engine is not running")
	}

	switch c := cmd.(type) {
	case ipc.CreateTab:
		return m.createTab(c)
	case ipc.CloseTab:
		return m.closeTab(c)
	case ipc.Navigate:
		return m.navigate(c)
	case ipc.GoBack:
		return m.goBack(c)
	case ipc.GoForward:
		return m.goForward(c)
	case ipc.Reload:
		return m.reload(c)
	case ipc.Stop:
		// Synthetic loads finish synchronously; stop is a no-op.
		return ipc.OKTab(c.Tab())
	case ipc.ClickCoordinates:
		return m.clickCoordinates(ctx, c)
	case ipc.ClickElement:
		return m.clickElement(ctx, c)
	case ipc.TypeText:
		return m.typeText(ctx, c)
	case ipc.PressKey:
		return m.pressKey(ctx, c)
	case ipc.EvaluateScript:
		return m.evaluateScript(ctx, c)
	case ipc.CaptureScreenshot:
		return m.captureScreenshot(c)
	case ipc.Scroll:
		return m.scroll(ctx, c)
	case ipc.FindElement:
		return m.findElement(c)
	case ipc.FindElements:
		return m.findElements(c)
	case ipc.WaitForElement:
		return m.waitForElement(ctx, c)
	case ipc.WaitForNavigation:
		// Loads are synchronous; navigation is always settled.
		return ipc.OKTab(c.Tab())
	case ipc.GetAttribute:
		return m.getAttribute(c)
	case ipc.SetAttribute:
		return m.setAttribute(c)
	case ipc.GetText:
		return m.getText(c)
	case ipc.GetValue:
		return m.getValue(c)
	case ipc.SetValue:
		return m.setValue(c)
	case ipc.Focus:
		return m.requireElement(c.Tab(), c.Selector)
	case ipc.Blur:
		return m.requireElement(c.Tab(), c.Selector)
	case ipc.Select:
		return m.selectOption(c)
	case ipc.SetChecked:
		return m.setChecked(c)
	case ipc.GetURL:
		return m.getURL(c)
	case ipc.GetTitle:
		return m.getTitle(c)
	case ipc.GetHTML:
		return m.getHTML(c)
	case ipc.GetTabs:
		return m.getTabs()
	case ipc.GetActiveTab:
		return m.getActiveTab()
	case ipc.SetActiveTab:
		return m.setActiveTab(c)
	case ipc.SetViewport:
		return m.setViewport(c)
	case ipc.SetUserAgent:
		return m.setUserAgent(c)
	case ipc.SetJavaScriptEnabled:
		return m.setJavaScriptEnabled(c)
	case ipc.Shutdown:
		_ = m.Shutdown(ctx)
		return ipc.OK()
	default:
		return ipc.Fail(fmt.Sprintf("unsupported command %s", cmd.Name()))
	}
}

func (m *Mock) createTab(c ipc.CreateTab) ipc.Response {
	tab, err := m.registry.Open(c.URL)
	if err != nil {
		return ipc.Fail(err.Error())
	}

	page, err := newMockPage(c.URL, m.cfg.WindowWidth, m.cfg.WindowHeight,
		m.inputCfg, m.bundle, m.scriptTimeout(), m.logger)
	if err != nil {
		_, _ = m.registry.Close(tab.ID)
		return ipc.Fail(err.Error())
	}
	_ = page.navigate(c.URL)

	m.mu.Lock()
	m.pages[tab.ID] = page
	m.mu.Unlock()

	if c.Active {
		_ = m.registry.SetActive(tab.ID)
	}
	m.finishLoad(tab.ID, page)

	m.publish(schemas.NewTabCreatedEvent(tab.ID.String(), c.URL))
	return ipc.OKTab(tab.ID.String())
}

func (m *Mock) closeTab(c ipc.CloseTab) ipc.Response {
	id, err := uuid.Parse(c.Tab())
	if err != nil {
		return ipc.Fail(fmt.Sprintf("invalid tab id %q", c.Tab()))
	}
	if _, err := m.registry.Close(id); err != nil {
		return ipc.Fail(err.Error())
	}
	m.mu.Lock()
	delete(m.pages, id)
	m.mu.Unlock()

	m.publish(schemas.NewTabClosedEvent(id.String()))
	if active := m.registry.ActiveID(); active != uuid.Nil {
		m.publish(schemas.NewActiveTabChangedEvent(active.String()))
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) navigate(c ipc.Navigate) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	m.registry.Update(id, func(t *tabs.Tab) { t.Navigate(c.URL) })
	m.publish(schemas.NewLoadingStateChangedEvent(id.String(), true))

	if err := page.navigate(c.URL); err != nil {
		m.registry.Update(id, func(t *tabs.Tab) { t.SetError(err.Error()) })
		tabID := id.String()
		m.publish(schemas.NewErrorEvent(&tabID, "navigation_failed", err.Error()))
		return ipc.Fail(err.Error())
	}

	m.finishLoad(id, page)
	return ipc.OKTab(id.String())
}

// finishLoad updates registry state and emits the event sequence of a
// completed load.
func (m *Mock) finishLoad(id uuid.UUID, page *mockPage) {
	m.registry.Update(id, func(t *tabs.Tab) {
		t.URL = page.url
		t.SetTitle(page.title)
		t.SetReady()
		t.CanGoBack = page.canGoBack()
		t.CanGoForward = page.canGoForward()
	})

	tabID := id.String()
	m.publish(schemas.NewURLChangedEvent(tabID, page.url))
	m.publish(schemas.NewTitleChangedEvent(tabID, page.title))
	m.publish(schemas.NewDomReadyEvent(tabID))
	m.publish(schemas.NewLoadCompleteEvent(tabID, page.url))
	m.publish(schemas.NewNavigationCompleteEvent(tabID, page.url, page.title))
	m.publish(schemas.NewLoadingStateChangedEvent(tabID, false))
}

func (m *Mock) goBack(c ipc.GoBack) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if _, ok := page.goBack(); !ok {
		return ipc.Fail("no back history")
	}
	m.finishLoad(id, page)
	return ipc.OKTab(id.String())
}

func (m *Mock) goForward(c ipc.GoForward) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if _, ok := page.goForward(); !ok {
		return ipc.Fail("no forward history")
	}
	m.finishLoad(id, page)
	return ipc.OKTab(id.String())
}

func (m *Mock) reload(c ipc.Reload) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := page.reload(); err != nil {
		return ipc.Fail(err.Error())
	}
	m.finishLoad(id, page)
	return ipc.OKTab(id.String())
}

func (m *Mock) clickCoordinates(ctx context.Context, c ipc.ClickCoordinates) ipc.Response {
	page, id, err := m.page(c.Tab())
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
	if err := page.synth.Click(ctx, target, button, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) clickElement(ctx context.Context, c ipc.ClickElement) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	box, ok := page.elementBox(c.Selector)
	if !ok {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	button, err := input.ParseButton(c.Button)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	mods, err := input.ParseModifiers(c.Modifiers)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	center := input.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
	if err := page.synth.Click(ctx, center, button, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) typeText(ctx context.Context, c ipc.TypeText) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if c.Selector != "" {
		sel := page.selection(c.Selector)
		if sel.Length() == 0 {
			return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
		}
		current, _ := sel.Attr("value")
		if c.ClearFirst {
			current = ""
		}
		sel.SetAttr("value", current+c.Text)
	}
	if err := page.synth.TypeText(ctx, c.Text); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) pressKey(ctx context.Context, c ipc.PressKey) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	mods, err := input.ParseModifiers(c.Modifiers)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if err := page.synth.PressKey(ctx, c.Key, mods); err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) evaluateScript(ctx context.Context, c ipc.EvaluateScript) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	value, err := page.evaluate(ctx, c.Script)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	var exported any
	if value != nil {
		exported = value.Export()
	}
	raw, err := json.Marshal(exported)
	if err != nil {
		return ipc.Fail(fmt.Sprintf("result is not serializable: %v", err))
	}
	return ipc.OKData(schemas.EvaluateResponse{Result: raw})
}

func (m *Mock) captureScreenshot(c ipc.CaptureScreenshot) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	format := render.ParseFormat(c.Format)
	var shot render.Screenshot
	if c.Selector != "" {
		box, ok := page.elementBox(c.Selector)
		if !ok {
			return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
		}
		shot, err = render.CaptureRegion(page.frames,
			int(box.X), int(box.Y), int(box.Width), int(box.Height),
			format, c.Quality, m.logger)
	} else {
		shot, err = render.Capture(page.frames, format, c.Quality, m.logger)
	}
	if err != nil {
		return ipc.Fail(err.Error())
	}

	return ipc.OKData(schemas.ScreenshotResponse{
		Data:   shot.Base64(),
		Format: string(shot.Format),
		Width:  shot.Width,
		Height: shot.Height,
	})
}

func (m *Mock) scroll(ctx context.Context, c ipc.Scroll) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	var anchor *input.Point
	if c.X != nil && c.Y != nil {
		anchor = &input.Point{X: float64(*c.X), Y: float64(*c.Y)}
	} else if c.Selector != "" {
		if box, ok := page.elementBox(c.Selector); ok {
			anchor = &input.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
		}
	}

	if err := page.synth.Scroll(ctx, anchor, float64(c.DeltaX), float64(c.DeltaY)); err != nil {
		return ipc.Fail(err.Error())
	}
	page.mu.Lock()
	page.scrollX += float64(c.DeltaX)
	page.scrollY += float64(c.DeltaY)
	page.mu.Unlock()
	return ipc.OKTab(id.String())
}

func (m *Mock) elementInfo(page *mockPage, selector string) schemas.ElementInfo {
	sel := page.selection(selector)
	if sel.Length() == 0 {
		return schemas.ElementInfo{Found: false}
	}

	first := sel.First()
	attrs := make(map[string]string)
	for _, a := range first.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}

	visible := true
	info := schemas.ElementInfo{
		Found:       true,
		TagName:     goquery.NodeName(first),
		TextContent: strings.TrimSpace(first.Text()),
		Attributes:  attrs,
		IsVisible:   &visible,
	}
	if box, ok := page.elementBox(selector); ok {
		info.BoundingBox = &box
	}
	return info
}

func (m *Mock) findElement(c ipc.FindElement) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(m.elementInfo(page, c.Selector))
}

func (m *Mock) findElements(c ipc.FindElements) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	infos := make([]schemas.ElementInfo, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		attrs := make(map[string]string)
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
		visible := true
		infos = append(infos, schemas.ElementInfo{
			Found:       true,
			TagName:     goquery.NodeName(s),
			TextContent: strings.TrimSpace(s.Text()),
			Attributes:  attrs,
			IsVisible:   &visible,
		})
	})
	return ipc.OKData(infos)
}

func (m *Mock) waitForElement(ctx context.Context, c ipc.WaitForElement) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}

	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = m.scriptTimeout()
	}
	deadline := time.Now().Add(timeout)

	for {
		if page.selection(c.Selector).Length() > 0 {
			return ipc.OKData(m.elementInfo(page, c.Selector))
		}
		if time.Now().After(deadline) {
			return ipc.Fail(fmt.Sprintf("element %q did not appear within %s", c.Selector, timeout))
		}
		select {
		case <-ctx.Done():
			return ipc.Fail(ctx.Err().Error())
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (m *Mock) requireElement(tabID, selector string) ipc.Response {
	page, id, err := m.page(tabID)
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if page.selection(selector).Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", selector))
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) getAttribute(c ipc.GetAttribute) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	value, _ := sel.Attr(c.Attribute)
	return ipc.OKData(map[string]string{"value": value})
}

func (m *Mock) setAttribute(c ipc.SetAttribute) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	sel.SetAttr(c.Attribute, c.Value)
	return ipc.OKTab(id.String())
}

func (m *Mock) getText(c ipc.GetText) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	return ipc.OKData(map[string]string{"text": strings.TrimSpace(sel.First().Text())})
}

func (m *Mock) getValue(c ipc.GetValue) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	value, _ := sel.Attr("value")
	return ipc.OKData(map[string]string{"value": value})
}

func (m *Mock) setValue(c ipc.SetValue) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	sel.SetAttr("value", c.Value)
	return ipc.OKTab(id.String())
}

func (m *Mock) selectOption(c ipc.Select) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}

	options := sel.Find("option")
	var chosen *goquery.Selection
	options.EachWithBreak(func(i int, opt *goquery.Selection) bool {
		value, _ := opt.Attr("value")
		switch {
		case c.Value != nil && value == *c.Value:
			chosen = opt
		case c.Label != nil && strings.TrimSpace(opt.Text()) == *c.Label:
			chosen = opt
		case c.Index != nil && i == *c.Index:
			chosen = opt
		}
		return chosen == nil
	})
	if chosen == nil {
		return ipc.Fail("no matching option")
	}

	options.RemoveAttr("selected")
	chosen.SetAttr("selected", "selected")
	value, _ := chosen.Attr("value")
	sel.SetAttr("value", value)
	return ipc.OKTab(id.String())
}

func (m *Mock) setChecked(c ipc.SetChecked) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	if c.Checked {
		sel.SetAttr("checked", "checked")
	} else {
		sel.RemoveAttr("checked")
	}
	return ipc.OKTab(id.String())
}

func (m *Mock) getURL(c ipc.GetURL) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"url": page.url})
}

func (m *Mock) getTitle(c ipc.GetTitle) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"title": page.title})
}

func (m *Mock) getHTML(c ipc.GetHTML) ipc.Response {
	page, _, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if c.Selector == "" {
		return ipc.OKData(map[string]string{"html": page.html})
	}
	sel := page.selection(c.Selector)
	if sel.Length() == 0 {
		return ipc.Fail(fmt.Sprintf("no element matches %q", c.Selector))
	}
	var html string
	if c.Outer {
		html, err = goquery.OuterHtml(sel.First())
	} else {
		html, err = sel.First().Html()
	}
	if err != nil {
		return ipc.Fail(err.Error())
	}
	return ipc.OKData(map[string]string{"html": html})
}

func (m *Mock) tabInfo(t tabs.Tab) schemas.TabInfo {
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

func (m *Mock) getTabs() ipc.Response {
	all := m.registry.ByAge()
	infos := make([]schemas.TabInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, m.tabInfo(t))
	}
	activeID := ""
	if id := m.registry.ActiveID(); id != uuid.Nil {
		activeID = id.String()
	}
	return ipc.OKData(schemas.TabsResponse{Tabs: infos, ActiveTabID: activeID})
}

func (m *Mock) getActiveTab() ipc.Response {
	tab, ok := m.registry.Active()
	if !ok {
		return ipc.Fail("no active tab")
	}
	return ipc.OKData(m.tabInfo(tab))
}

func (m *Mock) setActiveTab(c ipc.SetActiveTab) ipc.Response {
	id, err := uuid.Parse(c.Tab())
	if err != nil {
		return ipc.Fail(fmt.Sprintf("invalid tab id %q", c.Tab()))
	}
	if err := m.registry.SetActive(id); err != nil {
		return ipc.Fail(err.Error())
	}
	m.publish(schemas.NewActiveTabChangedEvent(id.String()))
	return ipc.OKTab(id.String())
}

func (m *Mock) setViewport(c ipc.SetViewport) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	if c.Width <= 0 || c.Height <= 0 {
		return ipc.Fail("viewport dimensions must be positive")
	}
	page.frames.Resize(c.Width, c.Height)
	page.synth.SetBounds(&input.Bounds{Width: float64(c.Width), Height: float64(c.Height)})
	page.mu.Lock()
	page.paint()
	page.mu.Unlock()
	return ipc.OKTab(id.String())
}

func (m *Mock) setUserAgent(c ipc.SetUserAgent) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	page.mu.Lock()
	page.userAgent = c.UserAgent
	page.mu.Unlock()
	return ipc.OKTab(id.String())
}

func (m *Mock) setJavaScriptEnabled(c ipc.SetJavaScriptEnabled) ipc.Response {
	page, id, err := m.page(c.Tab())
	if err != nil {
		return ipc.Fail(err.Error())
	}
	page.mu.Lock()
	page.jsEnabled = c.Enabled
	page.mu.Unlock()
	return ipc.OKTab(id.String())
}

func (m *Mock) publish(ev schemas.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
