// Package schemas defines the wire types shared between the HTTP surface,
// the WebSocket stream and their clients.
package schemas

import "encoding/json"

// APIResponse is the standard envelope for every HTTP response.
type APIResponse struct {
	Success bool            `json:"success"`
	TabID   string          `json:"tab_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	APIEnabled bool   `json:"api_enabled"`
}

// TabInfo describes one tab for API consumers.
type TabInfo struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	IsLoading    bool   `json:"is_loading"`
	IsActive     bool   `json:"is_active"`
	CanGoBack    bool   `json:"can_go_back"`
	CanGoForward bool   `json:"can_go_forward"`
}

// TabsResponse lists all open tabs.
type TabsResponse struct {
	Tabs        []TabInfo `json:"tabs"`
	ActiveTabID string    `json:"active_tab_id,omitempty"`
}

// NewTabRequest creates a tab. An empty URL opens about:blank.
type NewTabRequest struct {
	URL    string `json:"url,omitempty"`
	Active *bool  `json:"active,omitempty"`
}

// NewTabResponse returns the created tab.
type NewTabResponse struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
}

// CloseTabRequest closes a tab by id.
type CloseTabRequest struct {
	TabID string `json:"tab_id"`
}

// NavigateRequest navigates a tab. TabID falls back to the active tab.
type NavigateRequest struct {
	TabID string `json:"tab_id,omitempty"`
	URL   string `json:"url"`
}

// ClickRequest clicks at coordinates or on a selector. Exactly one of
// selector or the (x, y) pair must be present.
type ClickRequest struct {
	TabID     string   `json:"tab_id,omitempty"`
	X         *int     `json:"x,omitempty"`
	Y         *int     `json:"y,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	Button    string   `json:"button,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// TypeRequest types text, optionally focusing a selector first.
type TypeRequest struct {
	TabID      string `json:"tab_id,omitempty"`
	Text       string `json:"text"`
	Selector   string `json:"selector,omitempty"`
	ClearFirst bool   `json:"clear_first,omitempty"`
}

// ScrollRequest scrolls by a delta, optionally from an anchor point.
type ScrollRequest struct {
	TabID    string `json:"tab_id,omitempty"`
	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
	DeltaX   int    `json:"delta_x,omitempty"`
	DeltaY   int    `json:"delta_y,omitempty"`
	Selector string `json:"selector,omitempty"`
	Behavior string `json:"behavior,omitempty"`
}

// EvaluateRequest runs JavaScript in a tab.
type EvaluateRequest struct {
	TabID        string `json:"tab_id,omitempty"`
	Script       string `json:"script"`
	AwaitPromise *bool  `json:"await_promise,omitempty"`
}

// EvaluateResponse carries the script result.
type EvaluateResponse struct {
	Result json.RawMessage `json:"result"`
}

// ScreenshotResponse carries a base64 encoded capture.
type ScreenshotResponse struct {
	Data   string `json:"data"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BoundingBox is an element's layout rectangle.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementInfo describes a DOM element lookup result.
type ElementInfo struct {
	Found       bool              `json:"found"`
	TagName     string            `json:"tag_name,omitempty"`
	TextContent string            `json:"text_content,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	BoundingBox *BoundingBox      `json:"bounding_box,omitempty"`
	IsVisible   *bool             `json:"is_visible,omitempty"`
}

// APIToggleRequest flips the API enabled state.
type APIToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// APIStatusResponse reports API server state.
type APIStatusResponse struct {
	Enabled          bool `json:"enabled"`
	Port             int  `json:"port"`
	ConnectedClients int  `json:"connected_clients"`
}

// OK wraps a payload into a successful APIResponse.
func OK(data any) APIResponse {
	if data == nil {
		return APIResponse{Success: true}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Err("failed to encode response payload")
	}
	return APIResponse{Success: true, Data: raw}
}

// Err wraps a message into a failed APIResponse.
func Err(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}
