package coordination

import (
	"context"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

type targetResult struct {
	agentID string
	resp    *a2a.Response
	err     error
	took    time.Duration
}

// dispatchBroadcast fans the message out to every resolved target and
// aggregates per the spec. first and any short-circuit on the first success
// and abandon the rest of the fan-out.
func (o *Orchestrator) dispatchBroadcast(ctx context.Context, msg *a2a.A2AMessage, spec *a2a.BroadcastSpec) *a2a.Response {
	target := targetFromMessage(msg)
	resolution, err := o.resolver.Resolve(&target, msg.From)
	if err != nil {
		return a2a.ErrorResponse(msg, asTyped(err))
	}

	timeout := o.timeoutOr(spec.Timeout)
	n := len(resolution.Agents)

	o.logger.Debug("broadcast fan-out started",
		zap.String("message_id", msg.ID),
		zap.Int("targets", n),
		zap.String("aggregation", string(spec.Aggregation)),
	)

	switch spec.Aggregation {
	case a2a.AggregateFirst, a2a.AggregateAny:
		// Once satisfied, abandon the in-flight deliveries.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		return o.collectFirst(msg, o.fanOut(ctx, msg, resolution.Agents, timeout), n)
	default:
		return o.collectAll(msg, spec, o.fanOut(ctx, msg, resolution.Agents, timeout), n)
	}
}

// fanOut delivers to every agent concurrently and streams the outcomes. The
// returned cancel-on-drain semantics are owned by the caller via ctx.
func (o *Orchestrator) fanOut(ctx context.Context, msg *a2a.A2AMessage, agents []string, timeout time.Duration) <-chan targetResult {
	results := make(chan targetResult, len(agents))
	for _, agentID := range agents {
		go func(agentID string) {
			start := o.now()
			resp, err := o.deliver(ctx, agentID, msg, timeout)
			o.recordOutcome(agentID, err)
			results <- targetResult{agentID: agentID, resp: resp, err: err, took: o.now().Sub(start)}
		}(agentID)
	}
	return results
}

// collectFirst returns on the first success, best-effort cancelling the
// remaining deliveries through the shared context.
func (o *Orchestrator) collectFirst(msg *a2a.A2AMessage, results <-chan targetResult, n int) *a2a.Response {
	outcomes := make([]a2a.TargetOutcome, 0, n)
	for i := 0; i < n; i++ {
		res := <-results
		outcomes = append(outcomes, outcome(res))
		if res.err == nil {
			out := a2a.SuccessResponse(msg, res.resp.Result)
			out.Targets = outcomes
			return out
		}
	}

	out := a2a.ErrorResponse(msg, types.Newf(types.KindAgentUnavailable, "all %d broadcast targets failed", n).
		WithCode(types.CodeBroadcastFailed))
	out.Targets = outcomes
	return out
}

// collectAll waits for every target and applies the all/majority rule.
func (o *Orchestrator) collectAll(msg *a2a.A2AMessage, spec *a2a.BroadcastSpec, results <-chan targetResult, n int) *a2a.Response {
	outcomes := make([]a2a.TargetOutcome, 0, n)
	collected := make(map[string]any, n)
	successes := 0
	for i := 0; i < n; i++ {
		res := <-results
		outcomes = append(outcomes, outcome(res))
		if res.err == nil {
			successes++
			collected[res.agentID] = res.resp.Result
		}
	}

	ok := false
	switch spec.Aggregation {
	case a2a.AggregateAll:
		ok = successes == n
	case a2a.AggregateMajority:
		ok = successes > n/2
	}

	if ok {
		out := a2a.SuccessResponse(msg, collected)
		out.Targets = outcomes
		return out
	}

	out := a2a.ErrorResponse(msg, types.Newf(types.KindAgentUnavailable, "%d of %d broadcast targets succeeded", successes, n).
		WithCode(types.CodeBroadcastFailed))
	out.Targets = outcomes
	if spec.PartialSuccess {
		// Callers asked for whatever did succeed alongside the failure.
		out.Result = collected
	}
	return out
}

func outcome(res targetResult) a2a.TargetOutcome {
	out := a2a.TargetOutcome{
		AgentID:  res.agentID,
		Success:  res.err == nil,
		Duration: res.took,
	}
	if res.err != nil {
		out.Error = asTyped(res.err)
	}
	return out
}
