package routing

import (
	"sort"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/types"
)

// routeDirect resolves the message's single named recipient.
func (e *Engine) routeDirect(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	target, ok := msg.To.Single()
	if !ok {
		return nil, types.New(types.KindValidation, "direct route needs a single recipient").
			WithCode(types.CodeInvalidTarget)
	}

	entry, found := e.reg.Get(target)
	if !found {
		return nil, types.Newf(types.KindAgentUnavailable, "agent %q not registered", target).
			WithCode(types.CodeAgentNotFound).
			WithAgent(target)
	}
	if !entry.Card.Available() {
		return nil, types.Newf(types.KindAgentUnavailable, "agent %q is offline", target).
			WithCode(types.CodeAgentOffline).
			WithAgent(target)
	}
	return singleHop(msg, target, a2a.StrategyDirect), nil
}

// routeLoadBalanced prefers candidates under the load threshold and not
// overloaded; when every candidate is past the threshold it still picks the
// globally least-loaded one rather than failing.
func (e *Engine) routeLoadBalanced(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	candidates := e.candidates(msg)
	if len(candidates) == 0 {
		return nil, types.New(types.KindAgentUnavailable, "no agents available").
			WithCode(types.CodeAgentNotFound)
	}

	var best *registry.RoutingEntry
	for _, entry := range candidates {
		if entry.Card.Metadata.Load >= e.cfg.LoadThreshold ||
			entry.Card.Metadata.Status == a2a.StatusOverloaded {
			continue
		}
		if best == nil || entry.Card.Metadata.Load < best.Card.Metadata.Load {
			best = entry
		}
	}
	if best == nil {
		for _, entry := range candidates {
			if best == nil || entry.Card.Metadata.Load < best.Card.Metadata.Load {
				best = entry
			}
		}
	}
	return singleHop(msg, best.Card.ID, a2a.StrategyLoadBalanced), nil
}

// routeCapabilityAware ranks candidates by capability score, breaking ties
// with the lower load.
func (e *Engine) routeCapabilityAware(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	if len(msg.RequiredCapabilities) == 0 {
		return e.routeLoadBalanced(msg)
	}

	type scored struct {
		entry *registry.RoutingEntry
		score float64
	}
	var ranked []scored
	for _, entry := range e.candidates(msg) {
		score := CapabilityScore(entry.Card, msg.RequiredCapabilities)
		if score > 0 {
			ranked = append(ranked, scored{entry: entry, score: score})
		}
	}
	if len(ranked) == 0 {
		return nil, types.New(types.KindCapabilityNotFound, "no agent provides the required capabilities").
			WithCode(types.CodeAgentNotFound)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.Card.Metadata.Load < ranked[j].entry.Card.Metadata.Load
	})
	return singleHop(msg, ranked[0].entry.Card.ID, a2a.StrategyCapabilityAware), nil
}

// routeCostOptimized picks the cheapest advertised service for the message
// method, honoring the message's cost ceiling when one is set.
func (e *Engine) routeCostOptimized(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	var (
		best     *registry.RoutingEntry
		bestCost float64
	)
	for _, entry := range e.candidates(msg) {
		cost, ok := entry.Card.ServiceCost(msg.Method)
		if !ok {
			continue
		}
		if msg.MaxCost != nil && cost > *msg.MaxCost {
			continue
		}
		if best == nil || cost < bestCost {
			best, bestCost = entry, cost
		}
	}

	if best == nil {
		if msg.MaxCost != nil {
			return nil, types.Newf(types.KindResourceExhausted, "no agent offers %q within cost %.2f", msg.Method, *msg.MaxCost).
				WithCode(types.CodeCostExceeded)
		}
		return nil, types.Newf(types.KindAgentUnavailable, "no agent offers %q", msg.Method).
			WithCode(types.CodeAgentNotFound)
	}
	return singleHop(msg, best.Card.ID, a2a.StrategyCostOptimized), nil
}
