// Package agentroute provides a top-level entry point wiring the agent
// registry, routing engine, and coordination orchestrator together.
//
// Usage:
//
//	import "github.com/BaSui01/agentroute"
//
//	r, err := agentroute.New(nil, transport)
//	defer r.Close(context.Background())
//
//	r.RegisterAgent(card)
//	resp := r.Dispatch(ctx, msg)
package agentroute

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/api"
	"github.com/BaSui01/agentroute/config"
	"github.com/BaSui01/agentroute/coordination"
	"github.com/BaSui01/agentroute/internal/metrics"
	"github.com/BaSui01/agentroute/internal/server"
	"github.com/BaSui01/agentroute/internal/telemetry"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/routing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsSnapshot is a point-in-time view of router counters.
type MetricsSnapshot = metrics.Snapshot

// Option configures the router created by [New].
type Option func(*options)

type options struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	registerer prometheus.Registerer
}

// WithLogger sets a custom zap logger. Defaults to one built from the
// config's log section.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer sets a custom tracer, bypassing the config's telemetry section.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithRegisterer sets the Prometheus registerer for router metrics.
// Defaults to a private registry exposed via [Router.Gatherer].
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Router owns the registry, routing engine, and orchestrator lifecycle.
type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	provider  *telemetry.Provider
	reg       *registry.Registry
	engine    *routing.Engine
	collector *metrics.Collector
	orch      *coordination.Orchestrator
	gatherer  prometheus.Gatherer
}

// New builds a router from cfg and starts its background maintenance.
// A nil cfg uses [config.Default]. The transport is required: it carries
// messages to their destination agents.
func New(cfg *config.Config, transport coordination.Transport, opts ...Option) (*Router, error) {
	if transport == nil {
		return nil, errors.New("agentroute: transport is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agentroute: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		built, err := cfg.BuildLogger()
		if err != nil {
			return nil, fmt.Errorf("agentroute: build logger: %w", err)
		}
		logger = built
	}

	var provider *telemetry.Provider
	tracer := o.tracer
	if tracer == nil {
		p, err := telemetry.Init(cfg.Telemetry, logger)
		if err != nil {
			return nil, fmt.Errorf("agentroute: init telemetry: %w", err)
		}
		provider = p
		tracer = p.Tracer("agentroute")
	}

	registerer := o.registerer
	var gatherer prometheus.Gatherer
	if registerer == nil {
		promReg := prometheus.NewRegistry()
		registerer = promReg
		gatherer = promReg
	}

	reg := registry.New(cfg.Registry, logger)
	reg.Start()

	engine := routing.New(reg, cfg.Routing, logger)
	collector := metrics.NewCollector(cfg.Metrics.Namespace, registerer)
	orch := coordination.NewOrchestrator(reg, engine, transport, collector, cfg.Dispatch, logger, tracer)

	return &Router{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "router")),
		provider:  provider,
		reg:       reg,
		engine:    engine,
		collector: collector,
		orch:      orch,
		gatherer:  gatherer,
	}, nil
}

// RegisterAgent adds an agent card to the routing table.
func (r *Router) RegisterAgent(card *a2a.AgentCard) error {
	if err := r.reg.Register(card); err != nil {
		return err
	}
	r.collector.SetAgentCount(r.reg.Count())
	return nil
}

// UnregisterAgent removes an agent. Unknown IDs are ignored.
func (r *Router) UnregisterAgent(agentID string) {
	r.reg.Unregister(agentID)
	r.collector.SetAgentCount(r.reg.Count())
}

// UpdateAgentMetrics applies a partial health update for an agent.
func (r *Router) UpdateAgentMetrics(agentID string, update registry.MetricsUpdate) {
	r.reg.UpdateMetrics(agentID, update)
	if entry, ok := r.reg.Get(agentID); ok {
		r.collector.ObserveAgentLoad(agentID, entry.Card.Metadata.Load)
	}
}

// Agent returns the routing entry for agentID, if registered.
func (r *Router) Agent(agentID string) (*registry.RoutingEntry, bool) {
	return r.reg.Get(agentID)
}

// Agents returns a snapshot of all routing entries.
func (r *Router) Agents() []*registry.RoutingEntry {
	return r.reg.Snapshot()
}

// Link restores the directed edge from one agent to another.
func (r *Router) Link(from, to string) error {
	return r.reg.Link(from, to)
}

// Unlink severs the directed edge from one agent to another.
func (r *Router) Unlink(from, to string) error {
	return r.reg.Unlink(from, to)
}

// Topology returns the current network graph snapshot.
func (r *Router) Topology() *registry.GraphSnapshot {
	return r.reg.Graph()
}

// Subscribe returns a channel of registry lifecycle events.
func (r *Router) Subscribe() <-chan registry.Event {
	return r.reg.Subscribe()
}

// Route computes a delivery route for msg without dispatching it.
func (r *Router) Route(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	return r.engine.Route(msg)
}

// Dispatch executes msg per its coordination mode and returns the response.
func (r *Router) Dispatch(ctx context.Context, msg *a2a.A2AMessage) *a2a.Response {
	return r.orch.Dispatch(ctx, msg)
}

// Metrics returns a point-in-time snapshot of router counters.
func (r *Router) Metrics() MetricsSnapshot {
	r.collector.SetAgentCount(r.reg.Count())
	return r.collector.Snapshot()
}

// Gatherer exposes the Prometheus registry backing the router metrics.
// Nil when a custom registerer was supplied via [WithRegisterer].
func (r *Router) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// ServeOps starts the ops HTTP server (health, agents, topology, stats,
// Prometheus metrics, dispatch) on the config's ops address. The caller owns
// the returned manager's shutdown.
func (r *Router) ServeOps() (*server.Manager, error) {
	handler := api.NewHandler(r, r.gatherer, r.logger)
	mgr := server.NewManager(handler, r.cfg.Ops, r.logger)
	if err := mgr.Start(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// Close stops background maintenance and flushes telemetry.
func (r *Router) Close(ctx context.Context) error {
	r.reg.Close()
	if err := r.provider.Shutdown(ctx); err != nil {
		return err
	}
	_ = r.logger.Sync()
	return nil
}
