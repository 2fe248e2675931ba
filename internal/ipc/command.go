// Package ipc carries control commands from the API layer to the
// browser engine and replies back. It is an in-process command bus with
// per-command correlation and reply timeouts.
package ipc

import "encoding/json"

// Command is a browser control instruction. Each concrete command names
// itself through Name so logs and traces can identify what went over
// the bus.
type Command interface {
	Name() string
}

// TabCommand is implemented by commands that target one tab.
type TabCommand interface {
	Command
	Tab() string
}

type tabRef struct {
	TabID string
}

func (t tabRef) Tab() string { return t.TabID }

// SetTab assigns the target tab after construction. Commands embedding
// tabRef cannot take the tab in a composite literal from other
// packages, so callers set it through this.
func (t *tabRef) SetTab(id string) { t.TabID = id }

// CreateTab opens a new tab for a URL.
type CreateTab struct {
	URL    string
	Active bool
}

func (CreateTab) Name() string { return "CreateTab" }

// CloseTab closes a tab.
type CloseTab struct{ tabRef }

func NewCloseTab(tabID string) CloseTab { return CloseTab{tabRef{tabID}} }

func (CloseTab) Name() string { return "CloseTab" }

// Navigate loads a URL in a tab.
type Navigate struct {
	tabRef
	URL string
}

func NewNavigate(tabID, url string) Navigate { return Navigate{tabRef{tabID}, url} }

func (Navigate) Name() string { return "Navigate" }

// GoBack steps back in tab history.
type GoBack struct{ tabRef }

func NewGoBack(tabID string) GoBack { return GoBack{tabRef{tabID}} }

func (GoBack) Name() string { return "GoBack" }

// GoForward steps forward in tab history.
type GoForward struct{ tabRef }

func NewGoForward(tabID string) GoForward { return GoForward{tabRef{tabID}} }

func (GoForward) Name() string { return "GoForward" }

// Reload reloads the page, optionally bypassing cache.
type Reload struct {
	tabRef
	IgnoreCache bool
}

func NewReload(tabID string, ignoreCache bool) Reload { return Reload{tabRef{tabID}, ignoreCache} }

func (Reload) Name() string { return "Reload" }

// Stop cancels an in-flight load.
type Stop struct{ tabRef }

func NewStop(tabID string) Stop { return Stop{tabRef{tabID}} }

func (Stop) Name() string { return "Stop" }

// ClickCoordinates clicks at a pixel position.
type ClickCoordinates struct {
	tabRef
	X         int
	Y         int
	Button    string
	Modifiers []string
}

func (ClickCoordinates) Name() string { return "ClickCoordinates" }

// ClickElement clicks the element matching a selector.
type ClickElement struct {
	tabRef
	Selector  string
	Button    string
	Modifiers []string
}

func (ClickElement) Name() string { return "ClickElement" }

// TypeText types text, optionally focusing a selector first.
type TypeText struct {
	tabRef
	Text       string
	Selector   string
	ClearFirst bool
}

func (TypeText) Name() string { return "TypeText" }

// PressKey presses a named key with optional modifiers.
type PressKey struct {
	tabRef
	Key       string
	Modifiers []string
}

func (PressKey) Name() string { return "PressKey" }

// EvaluateScript runs JavaScript in the page.
type EvaluateScript struct {
	tabRef
	Script       string
	AwaitPromise bool
}

func (EvaluateScript) Name() string { return "EvaluateScript" }

// CaptureScreenshot captures the rendered frame.
type CaptureScreenshot struct {
	tabRef
	Format   string
	Quality  int
	FullPage bool
	Selector string
}

func (CaptureScreenshot) Name() string { return "CaptureScreenshot" }

// Scroll scrolls the page or an element.
type Scroll struct {
	tabRef
	X        *int
	Y        *int
	DeltaX   int
	DeltaY   int
	Selector string
	Behavior string
}

func (Scroll) Name() string { return "Scroll" }

// FindElement looks up one element by selector.
type FindElement struct {
	tabRef
	Selector  string
	TimeoutMs int
}

func (FindElement) Name() string { return "FindElement" }

// FindElements looks up all elements matching a selector.
type FindElements struct {
	tabRef
	Selector string
}

func (FindElements) Name() string { return "FindElements" }

// WaitForElement waits until a selector matches, optionally requiring
// visibility.
type WaitForElement struct {
	tabRef
	Selector  string
	TimeoutMs int
	Visible   bool
}

func (WaitForElement) Name() string { return "WaitForElement" }

// WaitForNavigation waits for the current load to finish.
type WaitForNavigation struct {
	tabRef
	TimeoutMs int
}

func (WaitForNavigation) Name() string { return "WaitForNavigation" }

// GetAttribute reads an element attribute.
type GetAttribute struct {
	tabRef
	Selector  string
	Attribute string
}

func (GetAttribute) Name() string { return "GetAttribute" }

// SetAttribute writes an element attribute.
type SetAttribute struct {
	tabRef
	Selector  string
	Attribute string
	Value     string
}

func (SetAttribute) Name() string { return "SetAttribute" }

// GetText reads an element's text content.
type GetText struct {
	tabRef
	Selector string
}

func (GetText) Name() string { return "GetText" }

// GetValue reads a form element's value.
type GetValue struct {
	tabRef
	Selector string
}

func (GetValue) Name() string { return "GetValue" }

// SetValue writes a form element's value.
type SetValue struct {
	tabRef
	Selector string
	Value    string
}

func (SetValue) Name() string { return "SetValue" }

// Focus focuses an element.
type Focus struct {
	tabRef
	Selector string
}

func (Focus) Name() string { return "Focus" }

// Blur removes focus from an element.
type Blur struct {
	tabRef
	Selector string
}

func (Blur) Name() string { return "Blur" }

// Select chooses a dropdown option by value, label or index.
type Select struct {
	tabRef
	Selector string
	Value    *string
	Label    *string
	Index    *int
}

func (Select) Name() string { return "Select" }

// SetChecked checks or unchecks a checkbox.
type SetChecked struct {
	tabRef
	Selector string
	Checked  bool
}

func (SetChecked) Name() string { return "SetChecked" }

// GetURL reads the page URL.
type GetURL struct{ tabRef }

func NewGetURL(tabID string) GetURL { return GetURL{tabRef{tabID}} }

func (GetURL) Name() string { return "GetUrl" }

// GetTitle reads the page title.
type GetTitle struct{ tabRef }

func NewGetTitle(tabID string) GetTitle { return GetTitle{tabRef{tabID}} }

func (GetTitle) Name() string { return "GetTitle" }

// GetHTML reads page or element markup.
type GetHTML struct {
	tabRef
	Selector string
	Outer    bool
}

func (GetHTML) Name() string { return "GetHtml" }

// GetTabs lists all tabs.
type GetTabs struct{}

func (GetTabs) Name() string { return "GetTabs" }

// GetActiveTab returns the active tab.
type GetActiveTab struct{}

func (GetActiveTab) Name() string { return "GetActiveTab" }

// SetActiveTab switches the active tab.
type SetActiveTab struct{ tabRef }

func NewSetActiveTab(tabID string) SetActiveTab { return SetActiveTab{tabRef{tabID}} }

func (SetActiveTab) Name() string { return "SetActiveTab" }

// SetViewport resizes the off-screen view of a tab.
type SetViewport struct {
	tabRef
	Width  int
	Height int
}

func (SetViewport) Name() string { return "SetViewport" }

// SetUserAgent overrides the user agent for a tab.
type SetUserAgent struct {
	tabRef
	UserAgent string
}

func (SetUserAgent) Name() string { return "SetUserAgent" }

// SetJavaScriptEnabled toggles script execution for a tab.
type SetJavaScriptEnabled struct {
	tabRef
	Enabled bool
}

func (SetJavaScriptEnabled) Name() string { return "SetJavaScriptEnabled" }

// Shutdown stops the engine. It is acknowledged as soon as it is
// queued; the engine drains and exits on its own schedule.
type Shutdown struct{}

func (Shutdown) Name() string { return "Shutdown" }

// Response is the engine's reply to a command.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	TabID   string          `json:"tab_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a bare success response.
func OK() Response {
	return Response{Success: true}
}

// OKTab builds a success response carrying a tab id.
func OKTab(tabID string) Response {
	return Response{Success: true, TabID: tabID}
}

// OKData builds a success response with a JSON payload. Marshal errors
// degrade to a failure response rather than a panic.
func OKData(v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return Fail("encoding response payload: " + err.Error())
	}
	return Response{Success: true, Data: raw}
}

// Fail builds an error response.
func Fail(message string) Response {
	return Response{Success: false, Error: message}
}
