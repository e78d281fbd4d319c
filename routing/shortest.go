package routing

import (
	"math"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// routeShortestPath runs Dijkstra over a snapshot of the network graph and
// rejects paths longer than the message's hop budget.
func (e *Engine) routeShortestPath(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	target, ok := msg.To.Single()
	if !ok {
		return nil, types.New(types.KindValidation, "shortest-path route needs a single recipient").
			WithCode(types.CodeInvalidTarget)
	}

	snap := e.reg.Graph()

	ids := make(map[string]int64, len(snap.Nodes))
	names := make(map[int64]string, len(snap.Nodes))
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i, id := range snap.Nodes {
		ids[id] = int64(i)
		names[int64(i)] = id
		g.AddNode(simple.Node(int64(i)))
	}

	fromID, ok := ids[msg.From]
	if !ok {
		return nil, types.Newf(types.KindRouting, "sender %q not in graph", msg.From).
			WithCode(types.CodeNoPath).
			WithAgent(msg.From)
	}
	toID, ok := ids[target]
	if !ok {
		return nil, types.Newf(types.KindRouting, "target %q not in graph", target).
			WithCode(types.CodeNoPath).
			WithAgent(target)
	}

	for from, edges := range snap.Edges {
		for _, edge := range edges {
			g.SetWeightedEdge(g.NewWeightedEdge(
				simple.Node(ids[from]), simple.Node(ids[edge.To]), edge.Weight,
			))
		}
	}

	shortest := path.DijkstraFrom(simple.Node(fromID), g)
	nodes, weight := shortest.To(toID)
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, types.Newf(types.KindRouting, "no path from %q to %q", msg.From, target).
			WithCode(types.CodeNoPath)
	}

	maxHops := msg.MaxHops
	if maxHops <= 0 {
		maxHops = e.cfg.MaxHops
	}
	hops := len(nodes) - 1
	if hops > maxHops {
		return nil, types.Newf(types.KindRouting, "path from %q to %q needs %d hops, budget is %d", msg.From, target, hops, maxHops).
			WithCode(types.CodeHopBudgetExceeded)
	}

	route := &a2a.MessageRoute{
		Path:     make([]string, len(nodes)),
		Hops:     hops,
		Strategy: a2a.StrategyShortestPath,
	}
	for i, n := range nodes {
		route.Path[i] = names[n.ID()]
	}
	return route, nil
}
