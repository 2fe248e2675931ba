package schemas

import "encoding/json"

// Event type tags used on the WebSocket stream.
const (
	EventTabCreated          = "TabCreated"
	EventTabClosed           = "TabClosed"
	EventNavigationComplete  = "NavigationComplete"
	EventDomReady            = "DomReady"
	EventLoadComplete        = "LoadComplete"
	EventTitleChanged        = "TitleChanged"
	EventURLChanged          = "UrlChanged"
	EventFaviconChanged      = "FaviconChanged"
	EventLoadingStateChanged = "LoadingStateChanged"
	EventActiveTabChanged    = "ActiveTabChanged"
	EventConsoleMessage      = "ConsoleMessage"
	EventDialogOpened        = "DialogOpened"
	EventDownloadStarted     = "DownloadStarted"
	EventDownloadProgress    = "DownloadProgress"
	EventDownloadComplete    = "DownloadComplete"
	EventError               = "Error"
	EventConnected           = "Connected"
	EventPing                = "Ping"
	EventPong                = "Pong"
)

// Event is one message on the stream, serialized as {"type": ..., "data": ...}.
// Data is omitted for payload-free events.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WSCommand is a client-to-server control message.
type WSCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WSSubscribeData carries the event names for Subscribe / Unsubscribe.
type WSSubscribeData struct {
	Events []string `json:"events"`
}

// Client command type tags.
const (
	WSCommandSubscribe   = "Subscribe"
	WSCommandUnsubscribe = "Unsubscribe"
	WSCommandPing        = "Ping"
)

// Event payloads. Field names match the wire format exactly.

type TabCreatedData struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
}

type TabClosedData struct {
	TabID string `json:"tab_id"`
}

type NavigationCompleteData struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type DomReadyData struct {
	TabID string `json:"tab_id"`
}

type LoadCompleteData struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
}

type TitleChangedData struct {
	TabID string `json:"tab_id"`
	Title string `json:"title"`
}

type URLChangedData struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
}

type FaviconChangedData struct {
	TabID      string  `json:"tab_id"`
	FaviconURL *string `json:"favicon_url"`
}

type LoadingStateChangedData struct {
	TabID     string `json:"tab_id"`
	IsLoading bool   `json:"is_loading"`
}

type ActiveTabChangedData struct {
	TabID string `json:"tab_id"`
}

type ConsoleMessageData struct {
	TabID   string  `json:"tab_id"`
	Level   string  `json:"level"`
	Message string  `json:"message"`
	Source  *string `json:"source,omitempty"`
	Line    *int    `json:"line,omitempty"`
}

type DialogOpenedData struct {
	TabID      string `json:"tab_id"`
	DialogType string `json:"dialog_type"`
	Message    string `json:"message"`
}

type DownloadStartedData struct {
	DownloadID string `json:"download_id"`
	URL        string `json:"url"`
	Filename   string `json:"filename"`
}

type DownloadProgressData struct {
	DownloadID    string  `json:"download_id"`
	ReceivedBytes uint64  `json:"received_bytes"`
	TotalBytes    *uint64 `json:"total_bytes"`
}

type DownloadCompleteData struct {
	DownloadID string `json:"download_id"`
	Path       string `json:"path"`
}

type ErrorData struct {
	TabID   *string `json:"tab_id"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

type ConnectedData struct {
	ClientID      uint64 `json:"client_id"`
	ServerVersion string `json:"server_version"`
}

type PingData struct {
	Timestamp uint64 `json:"timestamp"`
}

type PongData struct {
	Timestamp uint64 `json:"timestamp"`
}

// Event constructors.

func NewTabCreatedEvent(tabID, url string) Event {
	return Event{Type: EventTabCreated, Data: TabCreatedData{TabID: tabID, URL: url}}
}

func NewTabClosedEvent(tabID string) Event {
	return Event{Type: EventTabClosed, Data: TabClosedData{TabID: tabID}}
}

func NewNavigationCompleteEvent(tabID, url, title string) Event {
	return Event{Type: EventNavigationComplete, Data: NavigationCompleteData{TabID: tabID, URL: url, Title: title}}
}

func NewDomReadyEvent(tabID string) Event {
	return Event{Type: EventDomReady, Data: DomReadyData{TabID: tabID}}
}

func NewLoadCompleteEvent(tabID, url string) Event {
	return Event{Type: EventLoadComplete, Data: LoadCompleteData{TabID: tabID, URL: url}}
}

func NewTitleChangedEvent(tabID, title string) Event {
	return Event{Type: EventTitleChanged, Data: TitleChangedData{TabID: tabID, Title: title}}
}

func NewURLChangedEvent(tabID, url string) Event {
	return Event{Type: EventURLChanged, Data: URLChangedData{TabID: tabID, URL: url}}
}

func NewLoadingStateChangedEvent(tabID string, isLoading bool) Event {
	return Event{Type: EventLoadingStateChanged, Data: LoadingStateChangedData{TabID: tabID, IsLoading: isLoading}}
}

func NewActiveTabChangedEvent(tabID string) Event {
	return Event{Type: EventActiveTabChanged, Data: ActiveTabChangedData{TabID: tabID}}
}

func NewConsoleMessageEvent(tabID, level, message string) Event {
	return Event{Type: EventConsoleMessage, Data: ConsoleMessageData{TabID: tabID, Level: level, Message: message}}
}

func NewErrorEvent(tabID *string, code, message string) Event {
	return Event{Type: EventError, Data: ErrorData{TabID: tabID, Code: code, Message: message}}
}

func NewConnectedEvent(clientID uint64, version string) Event {
	return Event{Type: EventConnected, Data: ConnectedData{ClientID: clientID, ServerVersion: version}}
}

func NewPingEvent(timestamp uint64) Event {
	return Event{Type: EventPing, Data: PingData{Timestamp: timestamp}}
}

func NewPongEvent(timestamp uint64) Event {
	return Event{Type: EventPong, Data: PongData{Timestamp: timestamp}}
}
