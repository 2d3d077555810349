// Package api exposes the control plane's REST surface. Every endpoint
// answers HTTP 200 with the {success, message, data} envelope; failures
// are reported through the envelope, not through status codes, so that
// clients have exactly one place to look.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/pkg/models"
)

// SessionManager is the lifecycle surface the handlers drive.
type SessionManager interface {
	Create(req models.CreateBrowserRequest) (models.Browser, error)
	Open(ctx context.Context, id string) (models.OpenResult, error)
	Close(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	UpdatePartial(ids []string, fields models.UpdateFields) error
}

// Handler holds dependencies for the /browser endpoints.
type Handler struct {
	sessions SessionManager
	log      *zap.SugaredLogger
}

// NewHandler creates the control API handler.
func NewHandler(sessions SessionManager, log *zap.SugaredLogger) *Handler {
	return &Handler{sessions: sessions, log: log}
}

// CreateBrowser handles POST /browser/update (create or full replace).
func (h *Handler) CreateBrowser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBrowserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid request body: "+err.Error())
		return
	}

	browser, err := h.sessions.Create(req)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeSuccess(w, map[string]string{"id": browser.ID})
}

// OpenBrowser handles POST /browser/open.
func (h *Handler) OpenBrowser(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}

	result, err := h.sessions.Open(r.Context(), id)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}

	// The ws field points at this daemon's debug proxy; the http field
	// stays the container's raw endpoint for clients that resolve it
	// themselves.
	result.WS = fmt.Sprintf("ws://%s/browser/ws/%s", r.Host, id)
	writeSuccess(w, result)
}

// CloseBrowser handles POST /browser/close.
func (h *Handler) CloseBrowser(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Close(r.Context(), id); err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeSuccess(w, nil)
}

// DeleteBrowser handles POST /browser/delete.
func (h *Handler) DeleteBrowser(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeSuccess(w, nil)
}

// UpdateBrowsers handles POST /browser/update/partial.
func (h *Handler) UpdateBrowsers(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBrowserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid request body: "+err.Error())
		return
	}

	if err := h.sessions.UpdatePartial(req.IDs, req.UpdateFields); err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeSuccess(w, nil)
}

func decodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid request body: "+err.Error())
		return "", false
	}
	if req.ID == "" {
		writeFailure(w, "id is required")
		return "", false
	}
	return req.ID, true
}

func writeSuccess(w http.ResponseWriter, data any) {
	resp := models.APIResponse{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeFailure(w, "encode response: "+err.Error())
			return
		}
		resp.Data = raw
	}
	writeEnvelope(w, resp)
}

func writeFailure(w http.ResponseWriter, message string) {
	writeEnvelope(w, models.APIResponse{Success: false, Message: message})
}

func writeEnvelope(w http.ResponseWriter, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
