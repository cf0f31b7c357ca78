// Package admin provides the /admin/* control plane used by tests and
// operators for state management, fault injection, and inspection.
package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wondertwin-ai/srvgraph/pkg/twincore"
	"github.com/wondertwin-ai/srvgraph/pkg/webhook"
)

// StateStore is the interface a service must implement to support admin state management.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot() any
	// LoadState replaces the full state from a JSON body.
	LoadState(data []byte) error
	// Reset restores the initial seed state.
	Reset()
}

// Webhooks is implemented by the outbound event dispatcher.
type Webhooks interface {
	FlushWebhooks() error
	QueuedEvents() []webhook.Event
	Deliveries() []webhook.Delivery
	Reset()
}

// ConfigProvider exposes the runtime-tunable configuration.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Handler provides the admin endpoints.
type Handler struct {
	state    StateStore
	webhooks Webhooks
	config   ConfigProvider
	mw       *twincore.Middleware
}

// NewHandler creates a new admin handler.
func NewHandler(state StateStore, mw *twincore.Middleware) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
	}
}

// SetWebhooks sets the webhook dispatcher (optional).
func (h *Handler) SetWebhooks(wh Webhooks) {
	h.webhooks = wh
}

// SetConfig sets the runtime config provider (optional).
func (h *Handler) SetConfig(c ConfigProvider) {
	h.config = c
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Post("/fault/{endpoint}", h.handleInjectFault)
		r.Delete("/fault/{endpoint}", h.handleRemoveFault)
		r.Get("/faults", h.handleListFaults)
		r.Get("/requests", h.handleGetRequests)
		r.Post("/webhooks/flush", h.handleFlushWebhooks)
		r.Get("/webhooks", h.handleListWebhooks)
		r.Get("/config", h.handleGetConfig)
		r.Patch("/config", h.handleUpdateConfig)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.mw.ReqLog.Clear()
	h.mw.Faults.Reset()
	h.mw.Idempotent.Reset()
	if h.webhooks != nil {
		h.webhooks.Reset()
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	endpoint := "/" + chi.URLParam(r, "endpoint")

	var fault twincore.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	h.mw.Faults.Set(endpoint, fault)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":   "injected",
		"endpoint": endpoint,
		"fault":    fault,
	})
}

func (h *Handler) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	endpoint := "/" + chi.URLParam(r, "endpoint")
	if !h.mw.Faults.Remove(endpoint) {
		twincore.Error(w, http.StatusNotFound, "no fault registered for "+endpoint)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": endpoint})
}

func (h *Handler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleFlushWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		twincore.JSON(w, http.StatusOK, map[string]string{"status": "no webhooks configured"})
		return
	}
	if err := h.webhooks.FlushWebhooks(); err != nil {
		twincore.Error(w, http.StatusInternalServerError, "flush failed: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *Handler) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		twincore.JSON(w, http.StatusOK, map[string]any{
			"queued":     []webhook.Event{},
			"deliveries": []webhook.Delivery{},
		})
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"queued":     h.webhooks.QueuedEvents(),
		"deliveries": h.webhooks.Deliveries(),
	})
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotImplemented, "runtime config not available")
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotImplemented, "runtime config not available")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	if err := h.config.UpdateConfig(updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
