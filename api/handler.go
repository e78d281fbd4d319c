// Package api exposes the router's ops surface over HTTP: health, agent
// registry CRUD, topology, stats, Prometheus metrics, and message dispatch.
// It depends on the Router interface rather than the root package so the
// root facade can serve it without an import cycle.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/internal/metrics"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router is the subset of the root facade the handlers need.
type Router interface {
	RegisterAgent(card *a2a.AgentCard) error
	UnregisterAgent(agentID string)
	Agent(agentID string) (*registry.RoutingEntry, bool)
	Agents() []*registry.RoutingEntry
	Topology() *registry.GraphSnapshot
	Dispatch(ctx context.Context, msg *a2a.A2AMessage) *a2a.Response
	Metrics() metrics.Snapshot
}

// Handler serves the ops endpoints for one router.
type Handler struct {
	router   Router
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandler builds the ops mux. The gatherer may be nil, in which case
// /metrics is not mounted. A nil logger is replaced with a nop logger.
func NewHandler(router Router, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		router:   router,
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "api")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /v1/agents", h.handleListAgents)
	mux.HandleFunc("POST /v1/agents", h.handleRegisterAgent)
	mux.HandleFunc("GET /v1/agents/{id}", h.handleGetAgent)
	mux.HandleFunc("DELETE /v1/agents/{id}", h.handleUnregisterAgent)
	mux.HandleFunc("GET /v1/topology", h.handleTopology)
	mux.HandleFunc("GET /v1/stats", h.handleStats)
	mux.HandleFunc("POST /v1/messages", h.handleDispatch)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// healthStatus is the /health payload.
type healthStatus struct {
	Status    string    `json:"status"`
	Agents    int       `json:"agents"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:    "healthy",
		Agents:    len(h.router.Agents()),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, h.router.Agents())
}

func (h *Handler) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var card a2a.AgentCard
	if !decodeJSONBody(w, r, &card, h.logger) {
		return
	}
	if err := h.router.RegisterAgent(&card); err != nil {
		writeError(w, asRouterError(err), h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, Envelope{
		Success:   true,
		Data:      map[string]string{"id": card.ID},
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := h.router.Agent(id)
	if !ok {
		writeError(w, types.Newf(types.KindCapabilityNotFound, "agent %q not registered", id).
			WithCode(types.CodeAgentNotFound).
			WithAgent(id), h.logger)
		return
	}
	writeSuccess(w, entry)
}

func (h *Handler) handleUnregisterAgent(w http.ResponseWriter, r *http.Request) {
	h.router.UnregisterAgent(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTopology(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, h.router.Topology())
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, h.router.Metrics())
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var msg a2a.A2AMessage
	if !decodeJSONBody(w, r, &msg, h.logger) {
		return
	}
	resp := h.router.Dispatch(r.Context(), &msg)
	if !resp.Success && resp.Error != nil {
		writeJSON(w, kindToHTTPStatus(resp.Error.Kind), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// asRouterError normalizes foreign errors into the structured form.
func asRouterError(err error) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return types.New(types.GetKind(err), err.Error())
}
