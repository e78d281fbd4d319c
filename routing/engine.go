// Package routing plans message routes over the registry's network graph.
// The engine picks a strategy from the message (or auto-selects one), ranks
// candidate agents, and returns a MessageRoute the orchestrator can execute.
package routing

import (
	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// Config tunes the routing engine.
type Config struct {
	// MaxHops bounds shortest-path routes when the message does not set its
	// own budget.
	MaxHops int `json:"max_hops" yaml:"max_hops" env:"MAX_HOPS"`
	// LoadThreshold is the load cutoff for the load-balanced candidate
	// filter.
	LoadThreshold float64 `json:"load_threshold" yaml:"load_threshold" env:"LOAD_THRESHOLD"`
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		MaxHops:       10,
		LoadThreshold: 0.8,
	}
}

// Engine computes routes against registry snapshots.
type Engine struct {
	reg    *registry.Registry
	cfg    Config
	logger *zap.Logger
}

// New creates a routing engine over the registry. A nil logger is replaced
// with a nop logger.
func New(reg *registry.Registry, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultConfig().MaxHops
	}
	if cfg.LoadThreshold <= 0 || cfg.LoadThreshold > 1 {
		cfg.LoadThreshold = DefaultConfig().LoadThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		reg:    reg,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "routing")),
	}
}

// SelectStrategy returns the message's hint, or picks a strategy from the
// message shape: urgent messages route direct, capability requirements route
// capability-aware, a cost ceiling routes cost-optimized, multi-recipient
// messages route direct per target, everything else balances load.
func (e *Engine) SelectStrategy(msg *a2a.A2AMessage) a2a.RouteStrategy {
	if msg.RouteHint != "" {
		return msg.RouteHint
	}
	switch {
	case msg.Priority == a2a.PriorityCritical || msg.Priority == a2a.PriorityHigh:
		return a2a.StrategyDirect
	case len(msg.RequiredCapabilities) > 0:
		return a2a.StrategyCapabilityAware
	case msg.MaxCost != nil:
		return a2a.StrategyCostOptimized
	case msg.To.IsBroadcast() || msg.To.IsMultiple():
		return a2a.StrategyDirect
	default:
		return a2a.StrategyLoadBalanced
	}
}

// Route plans a route for the message. Any strategy failure other than an
// unavailable agent gets one fallback attempt with the direct strategy; the
// resulting route is marked as a fallback. Unavailable agents are surfaced
// to the caller, whose retry policy decides what happens next.
func (e *Engine) Route(msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	strategy := e.SelectStrategy(msg)

	route, err := e.apply(strategy, msg)
	if err == nil {
		e.logger.Debug("route planned",
			zap.String("message_id", msg.ID),
			zap.String("strategy", string(route.Strategy)),
			zap.Strings("path", route.Path),
		)
		return route, nil
	}

	if strategy != a2a.StrategyDirect && types.GetKind(err) != types.KindAgentUnavailable {
		e.logger.Debug("strategy failed, falling back to direct",
			zap.String("message_id", msg.ID),
			zap.String("strategy", string(strategy)),
			zap.Error(err),
		)
		if fallback, ferr := e.apply(a2a.StrategyDirect, msg); ferr == nil {
			fallback.Fallback = true
			return fallback, nil
		}
	}
	return nil, err
}

func (e *Engine) apply(strategy a2a.RouteStrategy, msg *a2a.A2AMessage) (*a2a.MessageRoute, error) {
	switch strategy {
	case a2a.StrategyDirect:
		return e.routeDirect(msg)
	case a2a.StrategyLoadBalanced:
		return e.routeLoadBalanced(msg)
	case a2a.StrategyCapabilityAware:
		return e.routeCapabilityAware(msg)
	case a2a.StrategyCostOptimized:
		return e.routeCostOptimized(msg)
	case a2a.StrategyShortestPath:
		return e.routeShortestPath(msg)
	default:
		return nil, types.Newf(types.KindValidation, "unknown route strategy %q", strategy)
	}
}

// candidates returns registry entries other than the sender whose agents are
// not offline.
func (e *Engine) candidates(msg *a2a.A2AMessage) []*registry.RoutingEntry {
	all := e.reg.Snapshot()
	out := all[:0]
	for _, entry := range all {
		if entry.Card.ID == msg.From || !entry.Card.Available() {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func singleHop(msg *a2a.A2AMessage, to string, strategy a2a.RouteStrategy) *a2a.MessageRoute {
	return &a2a.MessageRoute{
		Path:     []string{msg.From, to},
		Hops:     1,
		Strategy: strategy,
	}
}
