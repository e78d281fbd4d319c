package coordination

import (
	"context"
	"errors"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/retry"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// dispatchDirect routes the message to its single resolved agent and
// delivers it, retrying retryable failures per the spec's policy.
func (o *Orchestrator) dispatchDirect(ctx context.Context, msg *a2a.A2AMessage, spec *a2a.DirectSpec) *a2a.Response {
	target := targetFromMessage(msg)
	resolution, err := o.resolver.Resolve(&target, msg.From)
	if err != nil {
		return a2a.ErrorResponse(msg, asTyped(err))
	}
	if len(resolution.Agents) != 1 {
		return a2a.ErrorResponse(msg, types.Newf(types.KindValidation, "direct mode needs one target, got %d", len(resolution.Agents)).
			WithCode(types.CodeInvalidTarget))
	}
	agentID := resolution.Agents[0]

	directed := msg.CloneFor(agentID)
	if directed.RouteHint == "" {
		// Direct mode goes to the resolved agent; without a hint the engine
		// would pick a strategy free to choose another one.
		directed.RouteHint = a2a.StrategyDirect
	}
	route, err := o.engine.Route(directed)
	if err != nil {
		return a2a.ErrorResponse(msg, asTyped(err))
	}
	if o.collector != nil {
		o.collector.RecordRoute(route)
		if entry, ok := o.reg.Get(route.Destination()); ok {
			o.collector.ObserveAgentLoad(entry.Card.ID, entry.Card.Metadata.Load)
		}
	}

	timeout := o.timeoutOr(spec.Timeout)
	policy := spec.RetryPolicy
	if policy == nil {
		policy = o.cfg.DefaultRetry
	}
	retryer := retry.NewRetryer(policy, o.logger)

	result, err := retry.DoTyped(ctx, retryer, func() (*a2a.Response, error) {
		resp, derr := o.deliver(ctx, route.Destination(), msg, timeout)
		if derr != nil {
			return nil, derr
		}
		if spec.AckRequired && !acknowledged(resp) {
			return nil, types.Newf(types.KindProtocol, "agent %q did not acknowledge", route.Destination()).
				WithCode(types.CodeAckMissing).
				WithAgent(route.Destination())
		}
		return resp, nil
	})
	if err != nil {
		o.recordOutcome(route.Destination(), err)
		return a2a.ErrorResponse(msg, asTyped(err))
	}

	o.recordOutcome(route.Destination(), nil)
	out := a2a.SuccessResponse(msg, result.Result)
	out.Metadata.Hops = route.Hops
	out.Metadata.ResourceUsage = result.Metadata.ResourceUsage
	return out
}

// acknowledged reports whether the response carries a non-empty result to
// serve as an acknowledgment.
func acknowledged(resp *a2a.Response) bool {
	switch v := resp.Result.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// recordOutcome feeds delivery results back into the registry's metrics so
// connection quality tracks reality.
func (o *Orchestrator) recordOutcome(agentID string, err error) {
	entry, ok := o.reg.Get(agentID)
	if !ok {
		return
	}
	rate := entry.Card.Metadata.Metrics.SuccessRate
	// Exponential moving average, biased toward recent deliveries.
	observed := 1.0
	if err != nil {
		observed = 0.0
	}
	rate = rate*0.9 + observed*0.1
	o.reg.UpdateMetrics(agentID, registry.MetricsUpdate{SuccessRate: &rate})

	if err != nil {
		o.logger.Debug("delivery outcome recorded",
			zap.String("agent_id", agentID),
			zap.Float64("success_rate", rate),
			zap.Error(err),
		)
	}
}

func asTyped(err error) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return types.New(types.KindInternal, err.Error()).WithCause(err)
}
