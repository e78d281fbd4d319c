package coordination

import (
	"context"
	"strconv"
	"sync"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/retry"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dispatchPipeline threads the payload through the stages in declared order.
// A stage fans out in parallel when its target resolves to several agents,
// but stage N+1 never starts before stage N finishes. Cancellation marks the
// execution cancelled rather than failed.
func (o *Orchestrator) dispatchPipeline(ctx context.Context, msg *a2a.A2AMessage, spec *a2a.PipelineSpec) *a2a.Response {
	state := msg.Payload
	stageOutputs := make(map[string]any, len(spec.Stages))
	var outcomes []a2a.TargetOutcome

	policy := spec.Retry
	if policy == nil {
		policy = o.cfg.DefaultRetry
	}
	retryer := retry.NewRetryer(policy, o.logger)

	for i := range spec.Stages {
		stage := &spec.Stages[i]

		if ctx.Err() != nil {
			return o.cancelledResponse(msg, stage.Name, outcomes)
		}

		output, stageOutcomes, err := o.runStage(ctx, msg, stage, state)
		if err != nil && spec.OnFailure == a2a.FailRetry && types.IsRetryable(err) {
			output, stageOutcomes, err = o.retryStage(ctx, retryer, msg, stage, state)
		}
		outcomes = append(outcomes, stageOutcomes...)

		if err != nil {
			if ctx.Err() != nil {
				return o.cancelledResponse(msg, stage.Name, outcomes)
			}
			if spec.OnFailure == a2a.FailSkip {
				o.logger.Warn("pipeline stage skipped",
					zap.String("message_id", msg.ID),
					zap.String("stage", stage.Name),
					zap.Error(err),
				)
				continue // state flows through unchanged
			}
			out := a2a.ErrorResponse(msg, types.Newf(types.GetKind(err), "pipeline aborted at stage %q", stage.Name).
				WithCode(types.CodePipelineAborted).
				WithCause(err))
			out.Targets = outcomes
			return out
		}

		if stage.OutputTransform != nil {
			output = stage.OutputTransform(output)
		}
		stageOutputs[stageName(stage, i)] = output
		if spec.StatePassthrough {
			state = output
		}
	}

	result := any(stageOutputs)
	if spec.StatePassthrough {
		result = state
	}
	out := a2a.SuccessResponse(msg, result)
	out.Targets = outcomes
	return out
}

// runStage resolves the stage target and delivers to every resolved agent in
// parallel. A single-agent stage yields that agent's result; a multi-agent
// stage yields a map keyed by agent id.
func (o *Orchestrator) runStage(ctx context.Context, msg *a2a.A2AMessage, stage *a2a.Stage, state any) (any, []a2a.TargetOutcome, error) {
	resolution, err := o.resolver.Resolve(&stage.Target, msg.From)
	if err != nil {
		return nil, nil, err
	}

	input := state
	if stage.InputTransform != nil {
		input = stage.InputTransform(state)
	}

	stageMsg := msg.CloneFor("")
	stageMsg.Payload = input
	if stage.Method != "" {
		stageMsg = stageMsg.WithMethod(stage.Method)
	}

	var (
		mu       sync.Mutex
		results  = make(map[string]any, len(resolution.Agents))
		outcomes = make([]a2a.TargetOutcome, 0, len(resolution.Agents))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, agentID := range resolution.Agents {
		g.Go(func() error {
			start := o.now()
			resp, derr := o.deliver(gctx, agentID, stageMsg, o.cfg.DefaultTimeout)
			o.recordOutcome(agentID, derr)
			took := o.now().Sub(start)

			mu.Lock()
			defer mu.Unlock()
			oc := a2a.TargetOutcome{AgentID: agentID, Success: derr == nil, Duration: took}
			if derr != nil {
				oc.Error = asTyped(derr)
			} else {
				results[agentID] = resp.Result
			}
			outcomes = append(outcomes, oc)
			return derr
		})
	}
	if err := g.Wait(); err != nil {
		return nil, outcomes, err
	}

	if len(resolution.Agents) == 1 {
		return results[resolution.Agents[0]], outcomes, nil
	}
	return results, outcomes, nil
}

// retryStage re-runs a failed stage under the retry policy; the outcomes of
// the final attempt are reported.
func (o *Orchestrator) retryStage(ctx context.Context, retryer retry.Retryer, msg *a2a.A2AMessage, stage *a2a.Stage, state any) (any, []a2a.TargetOutcome, error) {
	var (
		output   any
		outcomes []a2a.TargetOutcome
	)
	err := retryer.Do(ctx, func() error {
		var attemptErr error
		output, outcomes, attemptErr = o.runStage(ctx, msg, stage, state)
		return attemptErr
	})
	return output, outcomes, err
}

func (o *Orchestrator) cancelledResponse(msg *a2a.A2AMessage, stage string, outcomes []a2a.TargetOutcome) *a2a.Response {
	out := a2a.ErrorResponse(msg, types.Newf(types.KindInternal, "pipeline cancelled at stage %q", stage).
		WithCode(types.CodePipelineCancelled))
	out.Cancelled = true
	out.Targets = outcomes
	return out
}

func stageName(stage *a2a.Stage, idx int) string {
	if stage.Name != "" {
		return stage.Name
	}
	return "stage_" + strconv.Itoa(idx)
}
