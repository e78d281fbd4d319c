package routing

import (
	"testing"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.DefaultConfig(), nil)
	t.Cleanup(reg.Close)
	return New(reg, DefaultConfig(), nil), reg
}

func register(t *testing.T, reg *registry.Registry, card *a2a.AgentCard) {
	t.Helper()
	require.NoError(t, reg.Register(card))
}

func TestSelectStrategy(t *testing.T) {
	engine, _ := newTestEngine(t)
	maxCost := 5.0

	tests := []struct {
		name   string
		mutate func(*a2a.A2AMessage)
		want   a2a.RouteStrategy
	}{
		{"hint wins", func(m *a2a.A2AMessage) {
			m.RouteHint = a2a.StrategyShortestPath
			m.Priority = a2a.PriorityCritical
		}, a2a.StrategyShortestPath},
		{"critical goes direct", func(m *a2a.A2AMessage) { m.Priority = a2a.PriorityCritical }, a2a.StrategyDirect},
		{"high goes direct", func(m *a2a.A2AMessage) { m.Priority = a2a.PriorityHigh }, a2a.StrategyDirect},
		{"capabilities beat cost", func(m *a2a.A2AMessage) {
			m.RequiredCapabilities = []a2a.Capability{{Name: "nlp", Version: "1.0"}}
			m.MaxCost = &maxCost
		}, a2a.StrategyCapabilityAware},
		{"cost ceiling", func(m *a2a.A2AMessage) { m.MaxCost = &maxCost }, a2a.StrategyCostOptimized},
		{"broadcast goes direct per target", func(m *a2a.A2AMessage) { m.To = a2a.ToBroadcast() }, a2a.StrategyDirect},
		{"agent list goes direct per target", func(m *a2a.A2AMessage) { m.To = a2a.ToMany("a", "b") }, a2a.StrategyDirect},
		{"default balances load", func(m *a2a.A2AMessage) {}, a2a.StrategyLoadBalanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := a2a.NewMessage("sender", a2a.To("receiver"), "task.run")
			tt.mutate(msg)
			assert.Equal(t, tt.want, engine.SelectStrategy(msg))
		})
	}
}

func TestRouteDirect(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Priority = a2a.PriorityHigh

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"sender", "worker-1"}, route.Path)
	assert.Equal(t, 1, route.Hops)
	assert.Equal(t, a2a.StrategyDirect, route.Strategy)
	assert.False(t, route.Fallback)
}

func TestRouteDirectUnavailable(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("ghost"), "task.run")
	msg.RouteHint = a2a.StrategyDirect

	_, err := engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.KindAgentUnavailable, types.GetKind(err))
	assert.Equal(t, types.CodeAgentNotFound, types.GetCode(err))
	assert.True(t, types.IsRetryable(err))

	offline := a2a.StatusOffline
	reg.UpdateMetrics("worker-1", registry.MetricsUpdate{Status: &offline})
	msg = a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.RouteHint = a2a.StrategyDirect

	_, err = engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.CodeAgentOffline, types.GetCode(err))
}

func TestRouteLoadBalanced(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("busy", a2a.TypeWorker).WithLoad(0.7))
	register(t, reg, a2a.NewAgentCard("idle", a2a.TypeWorker).WithLoad(0.1))
	register(t, reg, a2a.NewAgentCard("slammed", a2a.TypeWorker).WithLoad(0.95))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RouteHint = a2a.StrategyLoadBalanced

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "idle", route.Destination())
}

func TestRouteLoadBalancedAllPastThreshold(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("busy", a2a.TypeWorker).WithLoad(0.9))
	register(t, reg, a2a.NewAgentCard("busier", a2a.TypeWorker).WithLoad(0.97))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RouteHint = a2a.StrategyLoadBalanced

	// Nobody passes the load filter; the least-loaded agent is still chosen.
	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "busy", route.Destination())
}

func TestRouteLoadBalancedSkipsOverloadedStatus(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("lying", a2a.TypeWorker).WithLoad(0.1).WithStatus(a2a.StatusOverloaded))
	register(t, reg, a2a.NewAgentCard("honest", a2a.TypeWorker).WithLoad(0.5))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RouteHint = a2a.StrategyLoadBalanced

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "honest", route.Destination())
}

func TestRouteLoadBalancedNoAgents(t *testing.T) {
	engine, _ := newTestEngine(t)

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RouteHint = a2a.StrategyLoadBalanced

	_, err := engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.KindAgentUnavailable, types.GetKind(err))
}

func TestRouteCapabilityAware(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("exact", a2a.TypeWorker).AddCapability("nlp", "1.2").WithLoad(0.5))
	register(t, reg, a2a.NewAgentCard("newer", a2a.TypeWorker).AddCapability("nlp", "1.5").WithLoad(0.1))
	register(t, reg, a2a.NewAgentCard("unrelated", a2a.TypeWorker).AddCapability("vision", "1.0"))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RequiredCapabilities = []a2a.Capability{{Name: "nlp", Version: "1.2"}}

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "exact", route.Destination(), "an exact version match outranks a decayed newer minor")
	assert.Equal(t, a2a.StrategyCapabilityAware, route.Strategy)
}

func TestRouteCapabilityAwareTieBreaksOnLoad(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("loaded", a2a.TypeWorker).AddCapability("nlp", "2.0").WithLoad(0.6))
	register(t, reg, a2a.NewAgentCard("relaxed", a2a.TypeWorker).AddCapability("nlp", "2.0").WithLoad(0.2))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "task.run")
	msg.RequiredCapabilities = []a2a.Capability{{Name: "nlp", Version: "2.0"}}

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "relaxed", route.Destination())
}

func TestRouteCapabilityNotFoundFallsBackToDirect(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker).AddCapability("vision", "1.0"))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.RequiredCapabilities = []a2a.Capability{{Name: "nlp", Version: "1.0"}}

	// No agent has the capability, but the named recipient is reachable, so
	// one direct fallback is attempted and the route is marked.
	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", route.Destination())
	assert.True(t, route.Fallback)
	assert.Equal(t, a2a.StrategyDirect, route.Strategy)
}

func TestRouteCapabilityNotFoundNoFallbackTarget(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker).AddCapability("vision", "1.0"))

	msg := a2a.NewMessage("sender", a2a.To("ghost"), "task.run")
	msg.RequiredCapabilities = []a2a.Capability{{Name: "nlp", Version: "1.0"}}

	_, err := engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.KindCapabilityNotFound, types.GetKind(err), "the original strategy error is surfaced when the fallback also fails")
}

func TestRouteCostOptimized(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("pricey", a2a.TypeWorker).AddService("translate", "nlp.translate", 9.0))
	register(t, reg, a2a.NewAgentCard("bargain", a2a.TypeWorker).AddService("translate", "nlp.translate", 2.0))

	msg := a2a.NewMessage("sender", a2a.To("anyone"), "nlp.translate")
	msg.RouteHint = a2a.StrategyCostOptimized

	route, err := engine.Route(msg)
	require.NoError(t, err)
	assert.Equal(t, "bargain", route.Destination())
}

func TestRouteCostOptimizedCeiling(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("pricey", a2a.TypeWorker).AddService("translate", "nlp.translate", 9.0))

	maxCost := 5.0
	msg := a2a.NewMessage("sender", a2a.To("ghost"), "nlp.translate")
	msg.RouteHint = a2a.StrategyCostOptimized
	msg.MaxCost = &maxCost

	_, err := engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.KindResourceExhausted, types.GetKind(err))
	assert.Equal(t, types.CodeCostExceeded, types.GetCode(err))
}

func TestRouteUnavailableNeverFallsBack(t *testing.T) {
	engine, reg := newTestEngine(t)
	register(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.RouteHint = a2a.StrategyLoadBalanced

	// The only candidate is the recipient itself... make it offline so the
	// load-balanced pool is empty.
	offline := a2a.StatusOffline
	reg.UpdateMetrics("worker-1", registry.MetricsUpdate{Status: &offline})

	_, err := engine.Route(msg)
	require.Error(t, err)
	assert.Equal(t, types.KindAgentUnavailable, types.GetKind(err))
}
