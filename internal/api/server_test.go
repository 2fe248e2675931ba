package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/engine"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/ipc"
)

type testHarness struct {
	srv    *Server
	http   *httptest.Server
	engine *engine.Mock
	bus    *events.Bus
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 9222},
		Browser: config.BrowserConfig{
			WindowWidth:      640,
			WindowHeight:     480,
			MaxTabs:          5,
			DefaultTimeoutMs: 5000,
		},
		Input: config.InputConfig{Profile: "instant", MinPathPoints: 4, MaxPathPoints: 8},
	}

	bus := events.NewBus("test", zap.NewNop())
	eng := engine.NewMock(cfg, nil, bus, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))

	ch := ipc.NewChannel(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go engine.NewProcessor(ch, eng, zap.NewNop()).Run(ctx)

	srv := NewServer(cfg.Server, ch, eng.Registry(), bus, "1.0.0-test", zap.NewNop())
	ts := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		ts.Close()
		cancel()
		ch.Close()
		_ = eng.Shutdown(context.Background())
	})
	return &testHarness{srv: srv, http: ts, engine: eng, bus: bus}
}

func (h *testHarness) post(t *testing.T, path string, body any) (*http.Response, schemas.APIResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.http.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope schemas.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (h *testHarness) get(t *testing.T, path string) (*http.Response, schemas.APIResponse) {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope schemas.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (h *testHarness) createTab(t *testing.T, url string) string {
	t.Helper()
	resp, envelope := h.post(t, "/tabs/new", schemas.NewTabRequest{URL: url})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success, envelope.Error)
	require.NotEmpty(t, envelope.TabID)
	return envelope.TabID
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, envelope := h.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var health schemas.HealthResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.0.0-test", health.Version)
	assert.True(t, health.APIEnabled)
}

func TestCreateAndListTabs(t *testing.T) {
	h := newHarness(t)
	id := h.createTab(t, "https://example.com")

	resp, envelope := h.get(t, "/tabs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var listing schemas.TabsResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	require.Len(t, listing.Tabs, 1)
	assert.Equal(t, id, listing.Tabs[0].ID)
	assert.Equal(t, "https://example.com", listing.Tabs[0].URL)
	assert.True(t, listing.Tabs[0].IsActive)
}

func TestCreateTabDefaultsToBlank(t *testing.T) {
	h := newHarness(t)
	_, envelope := h.post(t, "/tabs/new", schemas.NewTabRequest{})
	require.True(t, envelope.Success, envelope.Error)

	var created schemas.NewTabResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	assert.Equal(t, "about:blank", created.URL)
}

func TestCloseTab(t *testing.T) {
	h := newHarness(t)
	id := h.createTab(t, "https://example.com")

	resp, envelope := h.post(t, "/tabs/close", schemas.CloseTabRequest{TabID: id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)

	resp, envelope = h.post(t, "/tabs/close", schemas.CloseTabRequest{TabID: id})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)

	resp, _ = h.post(t, "/tabs/close", schemas.CloseTabRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNavigateFallsBackToActiveTab(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, envelope := h.post(t, "/navigate", schemas.NavigateRequest{URL: "https://next.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)

	_, envelope = h.get(t, "/tabs")
	var listing schemas.TabsResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	assert.Equal(t, "https://next.test", listing.Tabs[0].URL)
}

func TestNavigateValidation(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.post(t, "/navigate", schemas.NavigateRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// No tabs open yet, so the active-tab fallback has nothing.
	resp, _ = h.post(t, "/navigate", schemas.NavigateRequest{URL: "https://x.test"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClickValidation(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, _ := h.post(t, "/click", schemas.ClickRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	x, y := 100, 120
	resp, envelope := h.post(t, "/click", schemas.ClickRequest{X: &x, Y: &y})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)

	resp, envelope = h.post(t, "/click", schemas.ClickRequest{Selector: "#submit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)
}

func TestTypeAndEvaluate(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, envelope := h.post(t, "/type", schemas.TypeRequest{Text: "hello", Selector: "#query"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)

	resp, envelope = h.post(t, "/evaluate", schemas.EvaluateRequest{Script: "6 * 7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success, envelope.Error)

	var eval schemas.EvaluateResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &eval))
	assert.JSONEq(t, "42", string(eval.Result))

	resp, _ = h.post(t, "/evaluate", schemas.EvaluateRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScreenshotEndpoint(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, envelope := h.get(t, "/screenshot?format=png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success, envelope.Error)

	var shot schemas.ScreenshotResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &shot))
	assert.Equal(t, "png", shot.Format)
	assert.Equal(t, 640, shot.Width)
	assert.Equal(t, 480, shot.Height)
	assert.NotEmpty(t, shot.Data)

	resp, _ = h.get(t, "/screenshot?quality=notanumber")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFindElementEndpoint(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, envelope := h.get(t, "/dom/element?selector=%23query")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var info schemas.ElementInfo
	require.NoError(t, json.Unmarshal(envelope.Data, &info))
	assert.True(t, info.Found)
	assert.Equal(t, "input", info.TagName)

	resp, _ = h.get(t, "/dom/element")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrollEndpoint(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	resp, envelope := h.post(t, "/scroll", schemas.ScrollRequest{DeltaY: 300})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success, envelope.Error)
}

func TestAPIDisabledGating(t *testing.T) {
	h := newHarness(t)
	h.createTab(t, "https://example.com")

	_, envelope := h.post(t, "/api/toggle", schemas.APIToggleRequest{Enabled: false})
	require.True(t, envelope.Success)

	resp, _ := h.get(t, "/tabs")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Health and status stay reachable while disabled.
	resp, _ = h.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, envelope = h.get(t, "/api/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status schemas.APIStatusResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &status))
	assert.False(t, status.Enabled)

	_, envelope = h.post(t, "/api/toggle", schemas.APIToggleRequest{Enabled: true})
	require.True(t, envelope.Success)
	resp, _ = h.get(t, "/tabs")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Post(h.http.URL+"/tabs/new", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketStream(t *testing.T) {
	h := newHarness(t)

	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func() schemas.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev schemas.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	ev := readEvent()
	require.Equal(t, schemas.EventConnected, ev.Type)
	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var connected schemas.ConnectedData
	require.NoError(t, json.Unmarshal(raw, &connected))
	assert.Equal(t, "test", connected.ServerVersion)
	assert.NotZero(t, connected.ClientID)

	// Ping round trip.
	require.NoError(t, conn.WriteJSON(schemas.WSCommand{Type: schemas.WSCommandPing}))
	ev = readEvent()
	assert.Equal(t, schemas.EventPong, ev.Type)

	// Tab lifecycle events arrive on the stream.
	h.createTab(t, "https://example.com")
	seen := map[string]bool{}
	for i := 0; i < 7; i++ {
		seen[readEvent().Type] = true
	}
	assert.True(t, seen[schemas.EventTabCreated])
	assert.True(t, seen[schemas.EventNavigationComplete])
	assert.True(t, seen[schemas.EventLoadingStateChanged])
}

func TestWebSocketSubscriptionFilter(t *testing.T) {
	h := newHarness(t)

	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev schemas.Event
	require.NoError(t, conn.ReadJSON(&ev)) // Connected

	sub, err := json.Marshal(schemas.WSSubscribeData{Events: []string{schemas.EventTabCreated}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(schemas.WSCommand{Type: schemas.WSCommandSubscribe, Data: sub}))

	// Give the read loop a beat to apply the filter before publishing.
	time.Sleep(50 * time.Millisecond)

	// A tab creation emits UrlChanged, TitleChanged, DomReady,
	// LoadComplete, NavigationComplete, LoadingStateChanged and
	// TabCreated; only the last may reach this client.
	id := h.createTab(t, "https://example.com")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, schemas.EventTabCreated, ev.Type)

	// Nothing else from that burst may be delivered.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var extra schemas.Event
	err = conn.ReadJSON(&extra)
	require.Error(t, err, "filtered event %q was delivered", extra.Type)

	// A navigation emits load events but no TabCreated, so the stream
	// stays silent for this client.
	_, out := h.post(t, "/navigate", map[string]any{"tab_id": id, "url": "https://example.com/next"})
	require.True(t, out.Success, out.Error)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	err = conn.ReadJSON(&extra)
	require.Error(t, err, "filtered event %q was delivered", extra.Type)
}
