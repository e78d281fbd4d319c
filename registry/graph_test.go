package registry

import (
	"testing"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func edgeTo(t *testing.T, snap *GraphSnapshot, from, to string) (GraphEdge, bool) {
	t.Helper()
	for _, e := range snap.Edges[from] {
		if e.To == to {
			return e, true
		}
	}
	return GraphEdge{}, false
}

func TestGraphDefaultsToFullMesh(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(a2a.NewAgentCard(id, a2a.TypeWorker)))
	}

	snap := r.Graph()
	assert.Len(t, snap.Nodes, 3)
	for _, from := range []string{"a", "b", "c"} {
		assert.Len(t, snap.Edges[from], 2, "each node connects to every other")
	}
}

func TestUnlinkSeversDirectedEdge(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(a2a.NewAgentCard("a", a2a.TypeWorker)))
	require.NoError(t, r.Register(a2a.NewAgentCard("b", a2a.TypeWorker)))

	require.NoError(t, r.Unlink("a", "b"))

	snap := r.Graph()
	_, ok := edgeTo(t, snap, "a", "b")
	assert.False(t, ok, "severed edge must be gone")
	_, ok = edgeTo(t, snap, "b", "a")
	assert.True(t, ok, "reverse direction is unaffected")

	require.NoError(t, r.Link("a", "b"))
	_, ok = edgeTo(t, r.Graph(), "a", "b")
	assert.True(t, ok)
}

func TestLinkValidation(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(a2a.NewAgentCard("a", a2a.TypeWorker)))

	err := r.Unlink("a", "ghost")
	require.Error(t, err)
	assert.Equal(t, types.CodeAgentNotFound, types.GetCode(err))

	require.Error(t, r.Link("a", "a"))
}

func TestUnregisterResetsSeveredEdges(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(a2a.NewAgentCard("a", a2a.TypeWorker)))
	require.NoError(t, r.Register(a2a.NewAgentCard("b", a2a.TypeWorker)))
	require.NoError(t, r.Unlink("a", "b"))

	r.Unregister("b")
	require.NoError(t, r.Register(a2a.NewAgentCard("b", a2a.TypeWorker)))

	_, ok := edgeTo(t, r.Graph(), "a", "b")
	assert.True(t, ok, "a re-registered agent starts with full-mesh edges")
}

func TestGraphExcludesOfflineTargets(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(a2a.NewAgentCard("a", a2a.TypeWorker)))
	require.NoError(t, r.Register(a2a.NewAgentCard("b", a2a.TypeWorker)))

	offline := a2a.StatusOffline
	r.UpdateMetrics("b", MetricsUpdate{Status: &offline})

	snap := r.Graph()
	_, ok := edgeTo(t, snap, "a", "b")
	assert.False(t, ok, "edges into offline agents are omitted")
	_, ok = edgeTo(t, snap, "b", "a")
	assert.True(t, ok)
}

func TestConnectionQuality(t *testing.T) {
	tests := []struct {
		name    string
		metrics a2a.AgentMetrics
		want    float64
	}{
		{
			"perfect agent",
			a2a.AgentMetrics{SuccessRate: 1, Uptime: 100},
			1.0,
		},
		{
			"latency at the 5s floor",
			a2a.AgentMetrics{ResponseTime: a2a.ResponseTimeStats{Avg: 5 * time.Second}, SuccessRate: 1, Uptime: 100},
			2.0 / 3.0,
		},
		{
			"latency beyond the floor clamps to zero",
			a2a.AgentMetrics{ResponseTime: a2a.ResponseTimeStats{Avg: time.Minute}, SuccessRate: 1, Uptime: 100},
			2.0 / 3.0,
		},
		{
			"dead agent",
			a2a.AgentMetrics{ResponseTime: a2a.ResponseTimeStats{Avg: 10 * time.Second}},
			0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConnectionQuality(tt.metrics), 1e-9)
		})
	}
}

func TestDistanceHeuristic(t *testing.T) {
	coordinator := a2a.NewAgentCard("c", a2a.TypeCoordinator)
	worker := a2a.NewAgentCard("w", a2a.TypeWorker)

	assert.Equal(t, 1, DistanceHeuristic(coordinator))
	assert.Equal(t, 2, DistanceHeuristic(worker))

	worker.WithLoad(0.5)
	assert.Equal(t, 3, DistanceHeuristic(worker))
	worker.WithLoad(1.0)
	assert.Equal(t, 4, DistanceHeuristic(worker))
}

func TestEdgeWeightFloor(t *testing.T) {
	card := a2a.NewAgentCard("w", a2a.TypeWorker)
	assert.Equal(t, 1.0, EdgeWeight(card), "an idle, reliable agent costs the minimum weight")
}

func TestEdgeWeightMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		load := rapid.Float64Range(0, 1).Draw(t, "load")
		success := rapid.Float64Range(0, 1).Draw(t, "success")
		avgMs := rapid.Int64Range(0, 10_000).Draw(t, "avg_ms")

		card := func(load, success float64, avgMs int64) *a2a.AgentCard {
			c := a2a.NewAgentCard("w", a2a.TypeWorker).WithLoad(load)
			c.Metadata.Metrics.SuccessRate = success
			c.Metadata.Metrics.ResponseTime.Avg = time.Duration(avgMs) * time.Millisecond
			return c
		}

		base := EdgeWeight(card(load, success, avgMs))
		assert.GreaterOrEqual(t, base, 1.0)

		if load < 1 {
			worse := EdgeWeight(card(1, success, avgMs))
			assert.GreaterOrEqual(t, worse, base, "higher load never lowers the weight")
		}
		if success > 0 {
			worse := EdgeWeight(card(load, 0, avgMs))
			assert.GreaterOrEqual(t, worse, base, "lower success rate never lowers the weight")
		}
		worse := EdgeWeight(card(load, success, avgMs+5_000))
		assert.GreaterOrEqual(t, worse, base, "higher latency never lowers the weight")
	})
}
