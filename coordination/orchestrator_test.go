package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/internal/ctxkeys"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/retry"
	"github.com/BaSui01/agentroute/routing"
	"github.com/BaSui01/agentroute/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, transport Transport) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.DefaultConfig(), nil)
	t.Cleanup(reg.Close)
	engine := routing.New(reg, routing.DefaultConfig(), nil)
	return NewOrchestrator(reg, engine, transport, nil, DefaultConfig(), nil, nil), reg
}

// callLog records transport deliveries for assertions.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(agentID string) {
	l.mu.Lock()
	l.calls = append(l.calls, agentID)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func echoTransport(log *callLog) Transport {
	return TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		if log != nil {
			log.add(agentID)
		}
		return a2a.SuccessResponse(msg, map[string]any{"agent": agentID, "payload": msg.Payload}), nil
	})
}

func quickRetry(attempts int) *retry.Policy {
	return &retry.Policy{
		MaxAttempts: attempts,
		Strategy:    retry.BackoffFixed,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}
}

func TestDispatchDirect(t *testing.T) {
	log := &callLog{}
	o, reg := newTestOrchestrator(t, echoTransport(log))
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Payload = "hello"

	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)
	assert.Equal(t, msg.ID, resp.CorrelationID)
	assert.Equal(t, 1, resp.Metadata.Hops)
	assert.Greater(t, resp.Metadata.ProcessingTime, time.Duration(0))
	assert.Equal(t, []string{"worker-1"}, log.list())
}

func TestDispatchRejectsExpiredBeforeDelivery(t *testing.T) {
	log := &callLog{}
	o, reg := newTestOrchestrator(t, echoTransport(log))
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Timestamp = time.Now().Add(-60 * time.Second)
	msg.TTL = 30 * time.Second

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindValidation, resp.Error.Kind)
	assert.Equal(t, types.CodeMessageExpired, resp.Error.Code)
	assert.Empty(t, log.list(), "expired messages must never reach the transport")
}

func TestDispatchRejectsInvalidSpec(t *testing.T) {
	log := &callLog{}
	o, reg := newTestOrchestrator(t, echoTransport(log))
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Coordination = &a2a.CoordinationSpec{Mode: a2a.ModeConsensus}

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindValidation, resp.Error.Kind)
	assert.Empty(t, log.list())
}

func TestDispatchDirectUnknownAgent(t *testing.T) {
	o, _ := newTestOrchestrator(t, echoTransport(nil))

	msg := a2a.NewMessage("sender", a2a.To("ghost"), "task.run")
	msg.Coordination = a2a.DirectCoordination(time.Second)
	msg.Coordination.Direct.RetryPolicy = quickRetry(1)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindAgentUnavailable, resp.Error.Kind)
}

func TestDispatchDirectTimeout(t *testing.T) {
	blocking := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o, reg := newTestOrchestrator(t, blocking)
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Coordination = a2a.DirectCoordination(20 * time.Millisecond)
	msg.Coordination.Direct.RetryPolicy = quickRetry(1)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindTimeout, resp.Error.Kind)
	assert.True(t, resp.Error.Retryable)
}

func TestDispatchDirectRetriesTransientFailure(t *testing.T) {
	log := &callLog{}
	var mu sync.Mutex
	attempts := 0
	flaky := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		log.add(agentID)
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, types.New(types.KindAgentUnavailable, "warming up")
		}
		return a2a.SuccessResponse(msg, "done"), nil
	})
	o, reg := newTestOrchestrator(t, flaky)
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Coordination = a2a.DirectCoordination(time.Second)
	msg.Coordination.Direct.RetryPolicy = quickRetry(3)

	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)
	assert.Len(t, log.list(), 2)
}

func TestDispatchDirectNonRetryableFailsFast(t *testing.T) {
	log := &callLog{}
	rejecting := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		log.add(agentID)
		return a2a.ErrorResponse(msg, types.New(types.KindValidation, "bad payload")), nil
	})
	o, reg := newTestOrchestrator(t, rejecting)
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Coordination = a2a.DirectCoordination(time.Second)
	msg.Coordination.Direct.RetryPolicy = quickRetry(5)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindValidation, resp.Error.Kind)
	assert.Len(t, log.list(), 1, "non-retryable failures must not be retried")
}

func TestDispatchDirectAckRequired(t *testing.T) {
	log := &callLog{}
	silent := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		log.add(agentID)
		return a2a.SuccessResponse(msg, nil), nil
	})
	o, reg := newTestOrchestrator(t, silent)
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	msg.Coordination = a2a.DirectCoordination(time.Second)
	msg.Coordination.Direct.AckRequired = true
	msg.Coordination.Direct.RetryPolicy = quickRetry(3)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.CodeAckMissing, resp.Error.Code)
	assert.Len(t, log.list(), 1)
}

func TestDispatchBroadcastAll(t *testing.T) {
	log := &callLog{}
	o, reg := newTestOrchestrator(t, echoTransport(log))
	for _, id := range []string{"w1", "w2", "w3"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "notify")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateAll, time.Second)

	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)
	assert.Len(t, resp.Targets, 3)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3"}, log.list())

	results, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Len(t, results, 3)
}

func failFor(ids map[string]bool, log *callLog) Transport {
	return TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		if log != nil {
			log.add(agentID)
		}
		if ids[agentID] {
			return nil, types.New(types.KindInternal, "boom").WithAgent(agentID)
		}
		return a2a.SuccessResponse(msg, "ok"), nil
	})
}

func TestDispatchBroadcastAllFailsOnAnyFailure(t *testing.T) {
	o, reg := newTestOrchestrator(t, failFor(map[string]bool{"w2": true}, nil))
	for _, id := range []string{"w1", "w2", "w3"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "notify")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateAll, time.Second)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.CodeBroadcastFailed, resp.Error.Code)
	assert.Len(t, resp.Targets, 3)

	failed := 0
	for _, target := range resp.Targets {
		if !target.Success {
			failed++
			assert.Equal(t, "w2", target.AgentID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestDispatchBroadcastPartialSuccessKeepsResults(t *testing.T) {
	o, reg := newTestOrchestrator(t, failFor(map[string]bool{"w2": true}, nil))
	for _, id := range []string{"w1", "w2"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "notify")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateAll, time.Second)
	msg.Coordination.Broadcast.PartialSuccess = true

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)

	partial, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, partial, "w1")
	assert.NotContains(t, partial, "w2")
}

func TestDispatchBroadcastMajority(t *testing.T) {
	o, reg := newTestOrchestrator(t, failFor(map[string]bool{"w3": true}, nil))
	for _, id := range []string{"w1", "w2", "w3"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "notify")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateMajority, time.Second)

	resp := o.Dispatch(context.Background(), msg)
	assert.True(t, resp.Success, "2 of 3 is a majority: %v", resp.Error)
}

func TestDispatchBroadcastFirstShortCircuits(t *testing.T) {
	fastOrSlow := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		if agentID == "slow" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return a2a.SuccessResponse(msg, "late"), nil
			}
		}
		return a2a.SuccessResponse(msg, "fast"), nil
	})
	o, reg := newTestOrchestrator(t, fastOrSlow)
	mustRegister(t, reg, a2a.NewAgentCard("fast", a2a.TypeWorker))
	mustRegister(t, reg, a2a.NewAgentCard("slow", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "race")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateFirst, 10*time.Second)

	start := time.Now()
	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)
	assert.Equal(t, "fast", resp.Result)
	assert.Less(t, time.Since(start), 2*time.Second, "first must not wait for the slow member")
}

func TestDispatchBroadcastAnyAllFail(t *testing.T) {
	o, reg := newTestOrchestrator(t, failFor(map[string]bool{"w1": true, "w2": true}, nil))
	for _, id := range []string{"w1", "w2"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "notify")
	msg.Coordination = a2a.BroadcastCoordination(a2a.AggregateAny, time.Second)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.CodeBroadcastFailed, resp.Error.Code)
}

func voteTransport(votes map[string]string) Transport {
	return TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		return a2a.SuccessResponse(msg, votes[agentID]), nil
	})
}

func TestDispatchConsensusMajority(t *testing.T) {
	o, reg := newTestOrchestrator(t, voteTransport(map[string]string{"w1": "yes", "w2": "yes", "w3": "no"}))
	for _, id := range []string{"w1", "w2", "w3"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "vote")
	msg.Coordination = a2a.ConsensusCoordination(a2a.ConsensusMajority, time.Second, 3)

	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)

	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, result["yes"])
	assert.Equal(t, 3, result["participants"])
}

func TestDispatchConsensusMajorityNotReached(t *testing.T) {
	o, reg := newTestOrchestrator(t, voteTransport(map[string]string{"w1": "yes", "w2": "no", "w3": "no"}))
	for _, id := range []string{"w1", "w2", "w3"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "vote")
	msg.Coordination = a2a.ConsensusCoordination(a2a.ConsensusMajority, time.Second, 0)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.CodeConsensusFailed, resp.Error.Code)
}

func TestDispatchConsensusUnanimous(t *testing.T) {
	o, reg := newTestOrchestrator(t, voteTransport(map[string]string{"w1": "yes", "w2": "yes"}))
	for _, id := range []string{"w1", "w2"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "vote")
	msg.Coordination = a2a.ConsensusCoordination(a2a.ConsensusUnanimous, time.Second, 2)

	resp := o.Dispatch(context.Background(), msg)
	assert.True(t, resp.Success, "dispatch failed: %v", resp.Error)
}

func TestDispatchConsensusUnanimousOneDissent(t *testing.T) {
	o, reg := newTestOrchestrator(t, voteTransport(map[string]string{"w1": "yes", "w2": "no"}))
	for _, id := range []string{"w1", "w2"} {
		mustRegister(t, reg, a2a.NewAgentCard(id, a2a.TypeWorker))
	}

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "vote")
	msg.Coordination = a2a.ConsensusCoordination(a2a.ConsensusUnanimous, time.Second, 0)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.CodeConsensusFailed, resp.Error.Code)
}

func TestDispatchConsensusQuorumTooSmall(t *testing.T) {
	o, reg := newTestOrchestrator(t, echoTransport(nil))
	mustRegister(t, reg, a2a.NewAgentCard("w1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.ToBroadcast(), "vote")
	msg.Coordination = a2a.ConsensusCoordination(a2a.ConsensusMajority, time.Second, 3)

	resp := o.Dispatch(context.Background(), msg)
	require.False(t, resp.Success)
	assert.Equal(t, types.KindInsufficientParticipants, resp.Error.Kind)
	assert.Equal(t, types.CodeQuorumTooSmall, resp.Error.Code)
	assert.False(t, resp.Error.Retryable)
}

func TestDeliveryContextCarriesMetadata(t *testing.T) {
	var (
		mu       sync.Mutex
		gotMsgID string
		gotAgent string
		gotMode  string
	)
	transport := TransportFunc(func(ctx context.Context, agentID string, msg *a2a.A2AMessage) (*a2a.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		gotMsgID, _ = ctxkeys.MessageID(ctx)
		gotAgent, _ = ctxkeys.TargetAgent(ctx)
		gotMode, _ = ctxkeys.CoordinationMode(ctx)
		return a2a.SuccessResponse(msg, "ok"), nil
	})
	o, reg := newTestOrchestrator(t, transport)
	mustRegister(t, reg, a2a.NewAgentCard("worker-1", a2a.TypeWorker))

	msg := a2a.NewMessage("sender", a2a.To("worker-1"), "task.run")
	resp := o.Dispatch(context.Background(), msg)
	require.True(t, resp.Success, "dispatch failed: %v", resp.Error)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, msg.ID, gotMsgID)
	assert.Equal(t, "worker-1", gotAgent)
	assert.Equal(t, string(a2a.ModeDirect), gotMode)
}
