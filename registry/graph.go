package registry

import (
	"math"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
)

// The network graph defaults to a full mesh: every registered agent has a
// directed edge to every other. Unlink severs individual edges and Link
// restores them; edge weights always reflect the target's current metrics.

// GraphEdge is one directed edge of a graph snapshot.
type GraphEdge struct {
	To      string  `json:"to"`
	Weight  float64 `json:"weight"`
	Quality float64 `json:"quality"`
}

// GraphSnapshot is a point-in-time copy of the network graph, safe to plan
// over while the registry keeps mutating.
type GraphSnapshot struct {
	// Nodes lists every registered agent id.
	Nodes []string `json:"nodes"`
	// Edges maps each source agent to its outgoing edges. Edges into
	// offline agents are omitted.
	Edges map[string][]GraphEdge `json:"edges"`
}

// Link restores the directed edge from one agent to another. Both agents
// must be registered.
func (r *Registry) Link(from, to string) error {
	return r.setEdge(from, to, false)
}

// Unlink severs the directed edge from one agent to another. Both agents
// must be registered.
func (r *Registry) Unlink(from, to string) error {
	return r.setEdge(from, to, true)
}

func (r *Registry) setEdge(from, to string, severed bool) error {
	if from == to {
		return types.New(types.KindValidation, "self edge")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []string{from, to} {
		if _, ok := r.entries[id]; !ok {
			return types.Newf(types.KindValidation, "agent %q not registered", id).
				WithCode(types.CodeAgentNotFound).
				WithAgent(id)
		}
	}

	if severed {
		if r.severed[from] == nil {
			r.severed[from] = make(map[string]bool)
		}
		r.severed[from][to] = true
		return nil
	}
	delete(r.severed[from], to)
	return nil
}

// Graph returns a snapshot of the network graph.
func (r *Registry) Graph() *GraphSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &GraphSnapshot{
		Nodes: make([]string, 0, len(r.entries)),
		Edges: make(map[string][]GraphEdge, len(r.entries)),
	}
	for id := range r.entries {
		snap.Nodes = append(snap.Nodes, id)
	}
	for from := range r.entries {
		for to, entry := range r.entries {
			if from == to || r.severed[from][to] {
				continue
			}
			if !entry.Card.Available() {
				continue
			}
			snap.Edges[from] = append(snap.Edges[from], GraphEdge{
				To:      to,
				Weight:  EdgeWeight(entry.Card),
				Quality: entry.ConnectionQuality,
			})
		}
	}
	return snap
}

// ConnectionQuality scores an agent's metrics into [0, 1]: the mean of its
// success rate, a latency score that hits zero at 5s average response time,
// and its uptime fraction.
func ConnectionQuality(m a2a.AgentMetrics) float64 {
	latency := math.Max(0, 1-float64(m.ResponseTime.Avg)/float64(5*time.Second))
	return (clamp01(m.SuccessRate) + latency + clamp01(m.Uptime/100)) / 3
}

// DistanceHeuristic estimates how far an agent is, routing-wise: base 1 for
// coordinators, 2 otherwise, plus floor(load*2). Always >= 1.
func DistanceHeuristic(card *a2a.AgentCard) int {
	base := 2
	if card.Type == a2a.TypeCoordinator {
		base = 1
	}
	return base + int(math.Floor(clamp01(card.Metadata.Load)*2))
}

// EdgeWeight is the cost of an edge into the given agent. It grows
// monotonically with the target's latency, load, and unreliability, and is
// never below 1.
func EdgeWeight(card *a2a.AgentCard) float64 {
	m := card.Metadata.Metrics
	latency := math.Min(float64(m.ResponseTime.Avg)/float64(100*time.Millisecond), 10)
	load := clamp01(card.Metadata.Load) * 5
	unreliability := (1 - clamp01(m.SuccessRate)) * 5
	return math.Max(1, latency+load+unreliability)
}
