// Package tabs tracks browser tab lifecycle and the active tab
// selection. Tab state here mirrors what the engine reports; it carries
// no rendering or navigation machinery of its own.
package tabs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a tab lifecycle state.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "Loading"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Error"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrTabNotFound reports an operation on an unknown tab id.
type ErrTabNotFound struct {
	ID uuid.UUID
}

func (e *ErrTabNotFound) Error() string {
	return fmt.Sprintf("tab %s not found", e.ID)
}

// ErrMaxTabsReached reports that the registry is at capacity.
type ErrMaxTabsReached struct {
	Max int
}

func (e *ErrMaxTabsReached) Error() string {
	return fmt.Sprintf("maximum of %d tabs reached", e.Max)
}

// Tab is a snapshot of one tab's state.
type Tab struct {
	ID           uuid.UUID
	URL          string
	Title        string
	CreatedAt    time.Time
	LastUpdated  time.Time
	Status       Status
	ErrorMessage string
	IsActive     bool
	CanGoBack    bool
	CanGoForward bool
}

// NewTab creates a tab in the loading state.
func NewTab(url string) Tab {
	return NewTabWithID(uuid.New(), url)
}

// NewTabWithID creates a tab with a caller-chosen id, used when the id
// must be known before registration.
func NewTabWithID(id uuid.UUID, url string) Tab {
	now := time.Now()
	return Tab{
		ID:          id,
		URL:         url,
		CreatedAt:   now,
		LastUpdated: now,
		Status:      StatusLoading,
	}
}

// Navigate moves the tab back into the loading state for a new URL and
// clears any previous error.
func (t *Tab) Navigate(url string) {
	t.URL = url
	t.Status = StatusLoading
	t.ErrorMessage = ""
	t.LastUpdated = time.Now()
}

// SetReady marks the load finished.
func (t *Tab) SetReady() {
	t.Status = StatusReady
	t.LastUpdated = time.Now()
}

// SetError marks the tab failed with a message.
func (t *Tab) SetError(message string) {
	t.Status = StatusError
	t.ErrorMessage = message
	t.LastUpdated = time.Now()
}

// SetClosed marks the tab closed.
func (t *Tab) SetClosed() {
	t.Status = StatusClosed
	t.LastUpdated = time.Now()
}

// SetTitle updates the page title.
func (t *Tab) SetTitle(title string) {
	t.Title = title
	t.LastUpdated = time.Now()
}

// IsReady reports whether the tab finished loading.
func (t *Tab) IsReady() bool { return t.Status == StatusReady }

// HasError reports whether the tab is in the error state.
func (t *Tab) HasError() bool { return t.Status == StatusError }

// Age returns how long the tab has existed.
func (t *Tab) Age() time.Duration { return time.Since(t.CreatedAt) }

// Registry holds all open tabs and the active tab selection. All
// methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tabs     map[uuid.UUID]*Tab
	activeID uuid.UUID
	maxTabs  int
}

// NewRegistry creates an unbounded registry.
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[uuid.UUID]*Tab)}
}

// NewRegistryWithLimit creates a registry that rejects new tabs past
// the limit. A limit of zero means unbounded.
func NewRegistryWithLimit(maxTabs int) *Registry {
	return &Registry{
		tabs:    make(map[uuid.UUID]*Tab),
		maxTabs: maxTabs,
	}
}

// Open registers a new tab for a URL. The first tab becomes active
// automatically.
func (r *Registry) Open(url string) (Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxTabs > 0 && len(r.tabs) >= r.maxTabs {
		return Tab{}, &ErrMaxTabsReached{Max: r.maxTabs}
	}

	tab := NewTab(url)
	if len(r.tabs) == 0 {
		tab.IsActive = true
		r.activeID = tab.ID
	}
	r.tabs[tab.ID] = &tab
	return tab, nil
}

// Close removes a tab and returns its final state. Closing the active
// tab promotes any surviving tab to active.
func (r *Registry) Close(id uuid.UUID) (Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tab, ok := r.tabs[id]
	if !ok {
		return Tab{}, &ErrTabNotFound{ID: id}
	}
	delete(r.tabs, id)
	tab.SetClosed()
	tab.IsActive = false

	if r.activeID == id {
		r.activeID = uuid.Nil
		for newID, t := range r.tabs {
			r.activeID = newID
			t.IsActive = true
			break
		}
	}
	return *tab, nil
}

// Get returns a snapshot of one tab.
func (r *Registry) Get(id uuid.UUID) (Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tab, ok := r.tabs[id]
	if !ok {
		return Tab{}, false
	}
	return *tab, true
}

// Update applies fn to a tab under the lock. It returns false when the
// tab does not exist.
func (r *Registry) Update(id uuid.UUID, fn func(*Tab)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tab, ok := r.tabs[id]
	if !ok {
		return false
	}
	fn(tab)
	return true
}

// All returns snapshots of every open tab.
func (r *Registry) All() []Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, *t)
	}
	return out
}

// ByAge returns all tabs ordered oldest first.
func (r *Registry) ByAge() []Tab {
	out := r.All()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ByStatus returns all tabs in a given state.
func (r *Registry) ByStatus(status Status) []Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tab
	for _, t := range r.tabs {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	return out
}

// Count returns the number of open tabs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// Active returns the active tab, if any.
func (r *Registry) Active() (Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tab, ok := r.tabs[r.activeID]
	if !ok {
		return Tab{}, false
	}
	return *tab, true
}

// ActiveID returns the active tab id, or uuid.Nil when none.
func (r *Registry) ActiveID() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// SetActive switches the active tab.
func (r *Registry) SetActive(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, ok := r.tabs[id]
	if !ok {
		return &ErrTabNotFound{ID: id}
	}
	if prev, ok := r.tabs[r.activeID]; ok {
		prev.IsActive = false
	}
	next.IsActive = true
	r.activeID = id
	return nil
}

// ClearActive deselects the active tab without closing it.
func (r *Registry) ClearActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.tabs[r.activeID]; ok {
		prev.IsActive = false
	}
	r.activeID = uuid.Nil
}

// CloseAll removes every tab.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tabs {
		t.SetClosed()
		t.IsActive = false
	}
	r.tabs = make(map[uuid.UUID]*Tab)
	r.activeID = uuid.Nil
}
