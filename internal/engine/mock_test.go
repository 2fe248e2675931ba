package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/stealth"
	"github.com/kibrowser/ki-browser/internal/tabs"
)

// tabCmd targets a command at a tab after construction.
func tabCmd[C any, P interface {
	*C
	SetTab(string)
}](id string, cmd C) C {
	P(&cmd).SetTab(id)
	return cmd
}

func testConfig() *config.Config {
	return &config.Config{
		Browser: config.BrowserConfig{
			WindowWidth:      640,
			WindowHeight:     480,
			MaxTabs:          5,
			DefaultTimeoutMs: 5000,
		},
		Input: config.InputConfig{
			Profile:         "instant",
			MinPathPoints:   4,
			MaxPathPoints:   8,
			JitterIntensity: 0.1,
		},
	}
}

func newTestEngine(t *testing.T, bus *events.Bus) *Mock {
	t.Helper()
	bundle := stealth.ConsistentBundle("engine-test")
	eng := NewMock(testConfig(), &bundle, bus, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })
	return eng
}

func createTab(t *testing.T, eng *Mock, url string) string {
	t.Helper()
	resp := eng.Execute(context.Background(), ipc.CreateTab{URL: url, Active: true})
	require.True(t, resp.Success, resp.Error)
	require.NotEmpty(t, resp.TabID)
	return resp.TabID
}

func TestMockCreateAndListTabs(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), ipc.GetTabs{})
	require.True(t, resp.Success)

	var listing schemas.TabsResponse
	require.NoError(t, json.Unmarshal(resp.Data, &listing))
	require.Len(t, listing.Tabs, 1)
	assert.Equal(t, id, listing.Tabs[0].ID)
	assert.Equal(t, "https://example.com", listing.Tabs[0].URL)
	assert.True(t, listing.Tabs[0].IsActive)
	assert.Equal(t, id, listing.ActiveTabID)
}

func TestMockTabLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Browser.MaxTabs = 1
	eng := NewMock(cfg, nil, nil, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))

	first := eng.Execute(context.Background(), ipc.CreateTab{URL: "https://one.test"})
	require.True(t, first.Success)
	second := eng.Execute(context.Background(), ipc.CreateTab{URL: "https://two.test"})
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "tab limit")
}

func TestMockNavigationHistory(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://first.test")

	resp := eng.Execute(context.Background(), ipc.NewNavigate(id, "https://second.test"))
	require.True(t, resp.Success, resp.Error)

	tab, ok := eng.Registry().Get(uuid.MustParse(id))
	require.True(t, ok)
	assert.Equal(t, "https://second.test", tab.URL)
	assert.True(t, tab.CanGoBack)
	assert.False(t, tab.CanGoForward)
	assert.Equal(t, tabs.StatusReady, tab.Status)

	resp = eng.Execute(context.Background(), ipc.NewGoBack(id))
	require.True(t, resp.Success, resp.Error)
	tab, ok = eng.Registry().Get(uuid.MustParse(id))
	require.True(t, ok)
	assert.Equal(t, "https://first.test", tab.URL)
	assert.True(t, tab.CanGoForward)

	resp = eng.Execute(context.Background(), ipc.NewGoForward(id))
	require.True(t, resp.Success, resp.Error)
	tab, ok = eng.Registry().Get(uuid.MustParse(id))
	require.True(t, ok)
	assert.Equal(t, "https://second.test", tab.URL)

	resp = eng.Execute(context.Background(), ipc.NewGoBack(id))
	require.True(t, resp.Success)
	resp = eng.Execute(context.Background(), ipc.NewGoBack(id))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "no back history")
}

func TestMockCloseTransfersActive(t *testing.T) {
	eng := newTestEngine(t, nil)
	first := createTab(t, eng, "https://one.test")
	second := createTab(t, eng, "https://two.test")

	resp := eng.Execute(context.Background(), ipc.NewCloseTab(second))
	require.True(t, resp.Success, resp.Error)

	assert.Equal(t, first, eng.Registry().ActiveID().String())
	resp = eng.Execute(context.Background(), ipc.NewCloseTab(second))
	assert.False(t, resp.Success)
}

func TestMockEvaluateScript(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.EvaluateScript{Script: "1 + 2"}))
	require.True(t, resp.Success, resp.Error)

	var out schemas.EvaluateResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.JSONEq(t, "3", string(out.Result))
}

func TestMockEvaluateSeesSpoofedNavigator(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.EvaluateScript{Script: "navigator.webdriver"}))
	require.True(t, resp.Success, resp.Error)
	var out schemas.EvaluateResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.JSONEq(t, "false", string(out.Result))

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.EvaluateScript{Script: "navigator.userAgent"}))
	require.True(t, resp.Success, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Contains(t, string(out.Result), "Mozilla/")
}

func TestMockEvaluateTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Browser.DefaultTimeoutMs = 1000
	eng := NewMock(cfg, nil, nil, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	id := createTab(t, eng, "https://example.com")

	start := time.Now()
	resp := eng.Execute(context.Background(), tabCmd(id, ipc.EvaluateScript{Script: "while (true) {}"}))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "script exceeded")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMockJavaScriptDisabled(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.SetJavaScriptEnabled{Enabled: false}))
	require.True(t, resp.Success, resp.Error)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.EvaluateScript{Script: "1 + 1"}))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "disabled")
}

func TestMockScreenshotDecodes(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.CaptureScreenshot{Format: "png"}))
	require.True(t, resp.Success, resp.Error)

	var shot schemas.ScreenshotResponse
	require.NoError(t, json.Unmarshal(resp.Data, &shot))
	assert.Equal(t, "png", shot.Format)
	assert.Equal(t, 640, shot.Width)
	assert.Equal(t, 480, shot.Height)

	raw, err := base64.StdEncoding.DecodeString(shot.Data)
	require.NoError(t, err)
	img, err := png.Decode(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
}

func TestMockElementQueries(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com/docs")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.FindElement{Selector: "#query"}))
	require.True(t, resp.Success, resp.Error)
	var info schemas.ElementInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.True(t, info.Found)
	assert.Equal(t, "input", info.TagName)
	require.NotNil(t, info.BoundingBox)
	assert.Greater(t, info.BoundingBox.Width, 0.0)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.FindElement{Selector: "#does-not-exist"}))
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.False(t, info.Found)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.FindElements{Selector: "option"}))
	require.True(t, resp.Success)
	var infos []schemas.ElementInfo
	require.NoError(t, json.Unmarshal(resp.Data, &infos))
	assert.Len(t, infos, 3)
}

func TestMockAttributesAndValues(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.SetAttribute{Selector: "#query", Attribute: "placeholder", Value: "search"}))
	require.True(t, resp.Success, resp.Error)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetAttribute{Selector: "#query", Attribute: "placeholder"}))
	require.True(t, resp.Success)
	var attr map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &attr))
	assert.Equal(t, "search", attr["value"])

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.SetValue{Selector: "#query", Value: "hello"}))
	require.True(t, resp.Success)
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetValue{Selector: "#query"}))
	require.True(t, resp.Success)
	var val map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &val))
	assert.Equal(t, "hello", val["value"])
}

func TestMockTypeTextAppendsAndClears(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	resp := eng.Execute(context.Background(), tabCmd(id, ipc.TypeText{Selector: "#query", Text: "abc"}))
	require.True(t, resp.Success, resp.Error)
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.TypeText{Selector: "#query", Text: "def"}))
	require.True(t, resp.Success)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetValue{Selector: "#query"}))
	var val map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &val))
	assert.Equal(t, "abcdef", val["value"])

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.TypeText{Selector: "#query", Text: "reset", ClearFirst: true}))
	require.True(t, resp.Success)
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetValue{Selector: "#query"}))
	require.NoError(t, json.Unmarshal(resp.Data, &val))
	assert.Equal(t, "reset", val["value"])
}

func TestMockSelectAndCheckbox(t *testing.T) {
	eng := newTestEngine(t, nil)
	id := createTab(t, eng, "https://example.com")

	value := "de"
	resp := eng.Execute(context.Background(), tabCmd(id, ipc.Select{Selector: "#lang", Value: &value}))
	require.True(t, resp.Success, resp.Error)
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetValue{Selector: "#lang"}))
	var val map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &val))
	assert.Equal(t, "de", val["value"])

	missing := "xx"
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.Select{Selector: "#lang", Value: &missing}))
	assert.False(t, resp.Success)

	resp = eng.Execute(context.Background(), tabCmd(id, ipc.SetChecked{Selector: "#agree", Checked: true}))
	require.True(t, resp.Success)
	resp = eng.Execute(context.Background(), tabCmd(id, ipc.GetAttribute{Selector: "#agree", Attribute: "checked"}))
	require.NoError(t, json.Unmarshal(resp.Data, &val))
	assert.Equal(t, "checked", val["value"])
}

func TestMockUnknownTab(t *testing.T) {
	eng := newTestEngine(t, nil)
	resp := eng.Execute(context.Background(), ipc.NewGetURL("1b671a64-40d5-491e-99b0-da01ff1f3341"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")

	resp = eng.Execute(context.Background(), ipc.NewGetURL("not-a-uuid"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid tab id")
}

func TestMockNavigateEventSequence(t *testing.T) {
	bus := events.NewBus("test", zap.NewNop())
	client := bus.Attach()
	defer bus.Detach(client)
	drainType(t, client) // Connected handshake

	eng := newTestEngine(t, bus)
	id := createTab(t, eng, "https://example.com")

	assert.Equal(t, schemas.EventURLChanged, drainType(t, client))
	assert.Equal(t, schemas.EventTitleChanged, drainType(t, client))
	assert.Equal(t, schemas.EventDomReady, drainType(t, client))
	assert.Equal(t, schemas.EventLoadComplete, drainType(t, client))
	assert.Equal(t, schemas.EventNavigationComplete, drainType(t, client))
	assert.Equal(t, schemas.EventLoadingStateChanged, drainType(t, client))
	assert.Equal(t, schemas.EventTabCreated, drainType(t, client))

	resp := eng.Execute(context.Background(), ipc.NewNavigate(id, "https://next.test"))
	require.True(t, resp.Success)
	assert.Equal(t, schemas.EventLoadingStateChanged, drainType(t, client))
	assert.Equal(t, schemas.EventURLChanged, drainType(t, client))
}

func drainType(t *testing.T, client *events.Client) string {
	t.Helper()
	select {
	case ev := <-client.Events():
		return ev.Type
	case <-time.After(time.Second):
		t.Fatal("no event within deadline")
		return ""
	}
}
