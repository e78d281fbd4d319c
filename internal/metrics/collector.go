// Package metrics collects routing and coordination measurements, exposing
// them both as Prometheus series and as an in-process snapshot.
package metrics

import (
	"sync"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates router metrics. All methods are safe for concurrent
// use.
type Collector struct {
	routesTotal      *prometheus.CounterVec
	dispatchesTotal  *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	routeHops        prometheus.Histogram
	agentsRegistered prometheus.Gauge
	agentLoad        *prometheus.GaugeVec

	mu             sync.Mutex
	totalRoutes    uint64
	totalFallbacks uint64
	dispatches     uint64
	successes      uint64
	failuresByKind map[types.ErrorKind]uint64
	strategyCounts map[a2a.RouteStrategy]uint64
	agentLoads     map[string]float64
	agentCount     int
}

// NewCollector creates a collector registered with the given registerer. Pass
// a fresh prometheus.NewRegistry per router instance; the default registerer
// rejects duplicate registration.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		routesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Routes planned, by strategy and fallback flag.",
		}, []string{"strategy", "fallback"}),
		dispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Message dispatches, by coordination mode and outcome.",
		}, []string{"mode", "outcome"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Dispatch failures, by error kind.",
		}, []string{"kind"}),
		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end dispatch latency, by coordination mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		routeHops: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_hops",
			Help:      "Hop counts of planned routes.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}),
		agentsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Agents currently in the registry.",
		}),
		agentLoad: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_load",
			Help:      "Agent load observed at routing time.",
		}, []string{"agent_id"}),
		failuresByKind: make(map[types.ErrorKind]uint64),
		strategyCounts: make(map[a2a.RouteStrategy]uint64),
		agentLoads:     make(map[string]float64),
	}
}

// ObserveAgentLoad records the load of an agent as seen when a route chose
// it, for load-distribution analysis.
func (c *Collector) ObserveAgentLoad(agentID string, load float64) {
	c.agentLoad.WithLabelValues(agentID).Set(load)

	c.mu.Lock()
	c.agentLoads[agentID] = load
	c.mu.Unlock()
}

// RecordRoute counts a planned route.
func (c *Collector) RecordRoute(route *a2a.MessageRoute) {
	fallback := "false"
	if route.Fallback {
		fallback = "true"
	}
	c.routesTotal.WithLabelValues(string(route.Strategy), fallback).Inc()
	c.routeHops.Observe(float64(route.Hops))

	c.mu.Lock()
	c.totalRoutes++
	c.strategyCounts[route.Strategy]++
	if route.Fallback {
		c.totalFallbacks++
	}
	c.mu.Unlock()
}

// RecordDispatch counts one finished dispatch.
func (c *Collector) RecordDispatch(mode a2a.CoordinationMode, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		c.failuresTotal.WithLabelValues(string(types.GetKind(err))).Inc()
	}
	c.dispatchesTotal.WithLabelValues(string(mode), outcome).Inc()
	c.dispatchDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())

	c.mu.Lock()
	c.dispatches++
	if err == nil {
		c.successes++
	} else {
		c.failuresByKind[types.GetKind(err)]++
	}
	c.mu.Unlock()
}

// SetAgentCount updates the registered-agents gauge.
func (c *Collector) SetAgentCount(n int) {
	c.agentsRegistered.Set(float64(n))

	c.mu.Lock()
	c.agentCount = n
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the in-process counters.
type Snapshot struct {
	TotalRoutes    uint64                       `json:"total_routes"`
	TotalFallbacks uint64                       `json:"total_fallbacks"`
	Dispatches     uint64                       `json:"dispatches"`
	Successes      uint64                       `json:"successes"`
	FailuresByKind map[types.ErrorKind]uint64   `json:"failures_by_kind"`
	StrategyCounts map[a2a.RouteStrategy]uint64 `json:"strategy_counts"`
	AgentLoads     map[string]float64           `json:"agent_loads"`

	AgentsRegistered int `json:"agents_registered"`
}

// Snapshot returns a copy of the in-process counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TotalRoutes:    c.totalRoutes,
		TotalFallbacks: c.totalFallbacks,
		Dispatches:     c.dispatches,
		Successes:      c.successes,
		FailuresByKind: make(map[types.ErrorKind]uint64, len(c.failuresByKind)),
		StrategyCounts: make(map[a2a.RouteStrategy]uint64, len(c.strategyCounts)),
		AgentLoads:     make(map[string]float64, len(c.agentLoads)),

		AgentsRegistered: c.agentCount,
	}
	for k, v := range c.failuresByKind {
		snap.FailuresByKind[k] = v
	}
	for k, v := range c.strategyCounts {
		snap.StrategyCounts[k] = v
	}
	for k, v := range c.agentLoads {
		snap.AgentLoads[k] = v
	}
	return snap
}
