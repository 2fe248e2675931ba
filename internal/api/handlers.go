package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/ipc"
)

func writeJSON(w http.ResponseWriter, status int, resp schemas.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, schemas.Err(message))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// resolveTab falls back to the active tab when the request omits one.
func (s *Server) resolveTab(w http.ResponseWriter, tabID string) (string, bool) {
	if tabID != "" {
		return tabID, true
	}
	active, ok := s.registry.Active()
	if !ok {
		writeError(w, http.StatusBadRequest, "no tab specified and no active tab")
		return "", false
	}
	return active.ID.String(), true
}

// send pushes a command through the channel and writes the reply.
// Transport errors are 500; engine failures keep 200 with success:false
// unless the tab was unknown.
func (s *Server) send(w http.ResponseWriter, r *http.Request, cmd ipc.Command) (ipc.Response, bool) {
	resp, err := s.ch.Send(r.Context(), cmd)
	if err != nil {
		s.logger.Error("command transport failed",
			zap.String("command", cmd.Name()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return ipc.Response{}, false
	}
	return resp, true
}

func (s *Server) writeCommandResult(w http.ResponseWriter, resp ipc.Response) {
	status := http.StatusOK
	if !resp.Success && isTabNotFound(resp.Error) {
		status = http.StatusNotFound
	}
	out := schemas.APIResponse{Success: resp.Success, TabID: resp.TabID, Error: resp.Error, Data: resp.Data}
	writeJSON(w, status, out)
}

// isTabNotFound matches the error text of a missing tab so the HTTP
// layer can answer 404. The engine reports failures as plain strings.
func isTabNotFound(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, schemas.OK(schemas.HealthResponse{
		Status:     "ok",
		Version:    s.version,
		APIEnabled: s.enabled.Load(),
	}))
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	clients := 0
	if s.bus != nil {
		clients = s.bus.ClientCount()
	}
	writeJSON(w, http.StatusOK, schemas.OK(schemas.APIStatusResponse{
		Enabled:          s.enabled.Load(),
		Port:             s.cfg.Port,
		ConnectedClients: clients,
	}))
}

func (s *Server) handleAPIToggle(w http.ResponseWriter, r *http.Request) {
	var req schemas.APIToggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.SetEnabled(req.Enabled)

	clients := 0
	if s.bus != nil {
		clients = s.bus.ClientCount()
	}
	writeJSON(w, http.StatusOK, schemas.OK(schemas.APIStatusResponse{
		Enabled:          req.Enabled,
		Port:             s.cfg.Port,
		ConnectedClients: clients,
	}))
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.send(w, r, ipc.GetTabs{})
	if !ok {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleCreateTab(w http.ResponseWriter, r *http.Request) {
	var req schemas.NewTabRequest
	if !decodeBody(w, r, &req) {
		return
	}
	url := req.URL
	if url == "" {
		url = "about:blank"
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	resp, ok := s.send(w, r, ipc.CreateTab{URL: url, Active: active})
	if !ok {
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusOK, schemas.Err(resp.Error))
		return
	}
	out := schemas.OK(schemas.NewTabResponse{TabID: resp.TabID, URL: url})
	out.TabID = resp.TabID
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	var req schemas.CloseTabRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TabID == "" {
		writeError(w, http.StatusBadRequest, "tab_id is required")
		return
	}
	resp, ok := s.send(w, r, ipc.NewCloseTab(req.TabID))
	if !ok {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req schemas.NavigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	tabID, ok := s.resolveTab(w, req.TabID)
	if !ok {
		return
	}
	resp, sent := s.send(w, r, ipc.NewNavigate(tabID, req.URL))
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req schemas.ClickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tabID, ok := s.resolveTab(w, req.TabID)
	if !ok {
		return
	}

	var cmd ipc.Command
	switch {
	case req.Selector != "":
		c := ipc.ClickElement{Selector: req.Selector, Button: req.Button, Modifiers: req.Modifiers}
		c.SetTab(tabID)
		cmd = c
	case req.X != nil && req.Y != nil:
		c := ipc.ClickCoordinates{X: *req.X, Y: *req.Y, Button: req.Button, Modifiers: req.Modifiers}
		c.SetTab(tabID)
		cmd = c
	default:
		writeError(w, http.StatusBadRequest, "click needs a selector or both x and y")
		return
	}

	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	var req schemas.TypeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	tabID, ok := s.resolveTab(w, req.TabID)
	if !ok {
		return
	}
	cmd := ipc.TypeText{Text: req.Text, Selector: req.Selector, ClearFirst: req.ClearFirst}
	cmd.SetTab(tabID)
	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req schemas.EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Script == "" {
		writeError(w, http.StatusBadRequest, "script is required")
		return
	}
	tabID, ok := s.resolveTab(w, req.TabID)
	if !ok {
		return
	}
	cmd := ipc.EvaluateScript{Script: req.Script}
	if req.AwaitPromise != nil {
		cmd.AwaitPromise = *req.AwaitPromise
	}
	cmd.SetTab(tabID)
	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tabID, ok := s.resolveTab(w, q.Get("tab_id"))
	if !ok {
		return
	}

	quality := 0
	if raw := q.Get("quality"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quality must be an integer")
			return
		}
		quality = parsed
	}
	fullPage := false
	if raw := q.Get("full_page"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "full_page must be a boolean")
			return
		}
		fullPage = parsed
	}

	cmd := ipc.CaptureScreenshot{
		Format:   q.Get("format"),
		Quality:  quality,
		FullPage: fullPage,
		Selector: q.Get("selector"),
	}
	cmd.SetTab(tabID)
	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req schemas.ScrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tabID, ok := s.resolveTab(w, req.TabID)
	if !ok {
		return
	}
	cmd := ipc.Scroll{
		X:        req.X,
		Y:        req.Y,
		DeltaX:   req.DeltaX,
		DeltaY:   req.DeltaY,
		Selector: req.Selector,
		Behavior: req.Behavior,
	}
	cmd.SetTab(tabID)
	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	s.writeCommandResult(w, resp)
}

func (s *Server) handleFindElement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	selector := q.Get("selector")
	if selector == "" {
		writeError(w, http.StatusBadRequest, "selector is required")
		return
	}
	tabID, ok := s.resolveTab(w, q.Get("tab_id"))
	if !ok {
		return
	}

	timeoutMs := 0
	if raw := q.Get("timeout"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timeout must be an integer")
			return
		}
		timeoutMs = parsed
	}

	cmd := ipc.FindElement{Selector: selector, TimeoutMs: timeoutMs}
	cmd.SetTab(tabID)
	resp, sent := s.send(w, r, cmd)
	if !sent {
		return
	}
	if !resp.Success {
		// Lookup misses still report found:false with a 200.
		writeJSON(w, http.StatusOK, schemas.OK(schemas.ElementInfo{Found: false}))
		return
	}
	s.writeCommandResult(w, resp)
}
